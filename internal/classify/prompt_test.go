package classify

import (
	"strings"
	"testing"
)

func TestBuildPromptIncludesLabelsAndRules(t *testing.T) {
	cfg := testClassifyConfig()
	stores := makeStores("手搖飲", 2)

	prompt, err := BuildPrompt(cfg, stores)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	for _, label := range cfg.Labels {
		if !strings.Contains(prompt, label) {
			t.Errorf("prompt missing label %q", label)
		}
	}
	for _, ex := range cfg.ExcludedStoreTypes {
		if !strings.Contains(prompt, ex) {
			t.Errorf("prompt missing excluded type %q", ex)
		}
	}
	if !strings.Contains(prompt, "500") {
		t.Error("prompt missing price ceiling")
	}
	if !strings.Contains(prompt, stores[0].Name) {
		t.Error("prompt missing store data")
	}
	if !strings.Contains(prompt, "JSON") {
		t.Error("prompt missing output format contract")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"leading whitespace", "  \n```json\n[]\n```  ", "[]"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
