package service_test

import (
	"testing"

	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/service"
)

func TestSessionStore(t *testing.T) {
	st := service.NewSessionStore()
	if st.Front() != nil || st.Current() != nil {
		t.Fatal("empty store returned a session")
	}

	st.Replace([]*domain.Session{{ID: 3}, {ID: 1}})
	st.Insert(&domain.Session{ID: 7})

	if got := st.Front().ID; got != 7 {
		t.Errorf("got front %d, want 7", got)
	}
	if st.Len() != 3 {
		t.Errorf("got len %d, want 3", st.Len())
	}
	if st.Find(0) != nil {
		t.Error("Find(0) returned a session")
	}

	if st.SetCurrent(42) {
		t.Error("SetCurrent accepted an unknown id")
	}
	if !st.SetCurrent(3) || st.CurrentID() != 3 {
		t.Fatalf("got current %d, want 3", st.CurrentID())
	}

	if !st.Remove(3) {
		t.Fatal("Remove(3) reported no session")
	}
	if st.CurrentID() != 0 {
		t.Errorf("focus not cleared after removing focused session")
	}
	if st.Remove(3) {
		t.Error("second Remove(3) succeeded")
	}

	st.SetCurrent(1)
	st.Replace([]*domain.Session{{ID: 1}})
	if st.CurrentID() != 1 {
		t.Error("Replace dropped focus of a surviving session")
	}
	st.Replace(nil)
	if st.CurrentID() != 0 {
		t.Error("Replace kept focus of a vanished session")
	}
}
