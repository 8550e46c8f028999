package hotkeys

import (
	"sort"
	"testing"

	"github.com/1broseidon/displayd/internal/config"
)

func TestIgnoreModCombinations(t *testing.T) {
	tests := []struct {
		name  string
		locks []uint16
		want  []uint16
	}{
		{"caps only", []uint16{2, 0, 0}, []uint16{0, 2}},
		{"caps and numlock", []uint16{2, 16, 0}, []uint16{0, 2, 16, 18}},
		{"duplicates collapse", []uint16{2, 2, 16}, []uint16{0, 2, 16, 18}},
		{"three locks", []uint16{2, 16, 128}, []uint16{0, 2, 16, 18, 128, 130, 144, 146}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ignoreModCombinations(tt.locks...)
			sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

type countingActions struct{ refresh, present int }

func (a *countingActions) RefreshAll()    { a.refresh++ }
func (a *countingActions) TogglePresent() { a.present++ }

func TestBindWithoutX11Backend(t *testing.T) {
	h := NewHandler(nil, &countingActions{}, nil)
	if err := h.Bind(config.DefaultConfig().Hotkeys); err == nil {
		t.Fatal("expected an error without an X11 connection")
	}
	if len(h.Bound()) != 0 {
		t.Fatalf("expected no bindings, got %v", h.Bound())
	}
}
