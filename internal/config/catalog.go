package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/set-night/mindchat/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultCatalog []byte

// ReasoningTier maps the reasoning toggle to a provider's native parameter.
type ReasoningTier struct {
	Off string `yaml:"off"`
	On  string `yaml:"on"`
}

// Catalog is the model price table plus the reasoning mapping. It is read
// concurrently by coordinators; FillPrices is the only writer.
type Catalog struct {
	mu           sync.RWMutex
	models       []domain.Model
	reasoning    map[string]ReasoningTier
	systemPrompt string
}

type catalogFile struct {
	Models       []domain.Model           `yaml:"models"`
	Reasoning    map[string]ReasoningTier `yaml:"reasoning"`
	SystemPrompt string                   `yaml:"system_prompt"`
}

// LoadCatalog reads the catalog from path. An empty path or a missing file
// falls back to the embedded defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Models) == 0 {
		return nil, errors.New("parse catalog: no models defined")
	}
	seen := make(map[string]bool, len(f.Models))
	for _, m := range f.Models {
		if m.ID == "" || m.Provider == "" || m.Key == "" {
			return nil, fmt.Errorf("parse catalog: model %q needs id, provider and key", m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}
	if f.Reasoning == nil {
		f.Reasoning = map[string]ReasoningTier{}
	}
	return &Catalog{
		models:       f.Models,
		reasoning:    f.Reasoning,
		systemPrompt: strings.TrimSpace(f.SystemPrompt),
	}, nil
}

func (c *Catalog) Models() []domain.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.models)
}

func (c *Catalog) Find(id string) (domain.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Model{}, false
}

// Available returns models whose provider has a credential, in catalog order.
func (c *Catalog) Available(hasKey func(provider string) bool) []domain.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Model
	for _, m := range c.models {
		if hasKey(m.Provider) {
			out = append(out, m)
		}
	}
	return out
}

// Effort returns the native reasoning parameter for provider. Unknown
// providers get an empty string, which adapters treat as "backend default".
func (c *Catalog) Effort(provider string, on bool) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tier := c.reasoning[provider]
	if on {
		return tier.On
	}
	return tier.Off
}

// SystemPrompt returns the default system prompt stamped with today's date.
func (c *Catalog) SystemPrompt(now time.Time) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.systemPrompt == "" {
		return ""
	}
	return c.systemPrompt + "\n- Today's date is " + now.Format("2006-01-02")
}

// FillPrices copies prices from listed onto catalog models of provider that
// have none configured. Returns how many models were updated.
func (c *Catalog) FillPrices(provider string, listed []domain.Model) int {
	byKey := make(map[string]domain.Model, len(listed))
	for _, m := range listed {
		byKey[m.Key] = m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.models {
		m := &c.models[i]
		if m.Provider != provider || m.HasPrices() {
			continue
		}
		src, ok := byKey[m.Key]
		if !ok {
			continue
		}
		m.InputPrice = src.InputPrice
		m.OutputPrice = src.OutputPrice
		m.CachedInputPrice = src.CachedInputPrice
		n++
	}
	return n
}
