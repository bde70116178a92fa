package domain

// Model describes one selectable model. Prices are USD per 1M tokens;
// SearchPrice is USD per 1k searches.
type Model struct {
	ID               string  `yaml:"id"`
	Provider         string  `yaml:"provider"`
	Key              string  `yaml:"key"`
	InputPrice       float64 `yaml:"input"`
	OutputPrice      float64 `yaml:"output"`
	CachedInputPrice float64 `yaml:"input_cached"`
	SearchPrice      float64 `yaml:"search"`
}

func (m *Model) IsFree() bool {
	return m.InputPrice == 0 && m.OutputPrice == 0
}

func (m *Model) HasPrices() bool {
	return !m.IsFree() || m.CachedInputPrice != 0 || m.SearchPrice != 0
}
