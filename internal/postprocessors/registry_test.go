package postprocessors

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// registryMockProcessor is a simple mock for testing registry functionality.
type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, paras []domain.Paragraph) ([]domain.Paragraph, error) {
	return paras, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if len(r.builders) != 0 {
		t.Errorf("expected empty builders, got %d", len(r.builders))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	builder := func(_ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: "test"}, nil
	}

	r.Register("test", builder)

	if !r.Has("test") {
		t.Error("expected 'test' to be registered")
	}
}

func TestRegistry_Build_Success(t *testing.T) {
	r := NewRegistry()

	builder := func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	}

	r.Register("test", builder)

	proc, err := r.Build("test", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("unknown", nil)
	if err == nil {
		t.Error("expected error for unknown processor")
	}
}

func TestRegistry_Has(t *testing.T) {
	r := NewRegistry()

	if r.Has("nonexistent") {
		t.Error("expected Has to return false for nonexistent processor")
	}

	r.Register("exists", func(_ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: "exists"}, nil
	})

	if !r.Has("exists") {
		t.Error("expected Has to return true for registered processor")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()

	names := r.Names()
	if len(names) != 0 {
		t.Errorf("expected 0 names, got %d", len(names))
	}

	r.Register("alpha", func(_ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: "alpha"}, nil
	})
	r.Register("beta", func(_ map[string]any) (driven.PostProcessor, error) {
		return &registryMockProcessor{name: "beta"}, nil
	})

	names = r.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %d", len(names))
	}

	// Check both names are present (order may vary)
	nameSet := make(map[string]bool)
	for _, n := range names {
		nameSet[n] = true
	}
	if !nameSet["alpha"] || !nameSet["beta"] {
		t.Errorf("expected names alpha and beta, got %v", names)
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	for _, name := range []string{"minlength", "maxlength"} {
		if !r.Has(name) {
			t.Errorf("expected %q to be registered after RegisterDefaults", name)
		}
	}
}

func TestBuildMinLength(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	paras := domain.PositionParagraphs([]string{strings.Repeat("a", 119), strings.Repeat("b", 120)})

	proc, err := r.Build("minlength", nil)
	if err != nil {
		t.Fatalf("Build minlength failed: %v", err)
	}
	kept, _ := proc.Process(context.Background(), paras)
	if len(kept) != 1 || kept[0].Position != 1 {
		t.Errorf("expected default threshold of 120 runes, kept %v", kept)
	}

	proc, err = r.Build("minlength", map[string]any{"min_length": int64(0)})
	if err != nil {
		t.Fatalf("Build minlength failed: %v", err)
	}
	kept, _ = proc.Process(context.Background(), paras)
	if len(kept) != 2 {
		t.Errorf("expected explicit zero to keep everything, kept %d", len(kept))
	}
}

func TestFromSettings(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := FromSettings(r, domain.PipelineSettings{MinParagraphLength: 3, MaxParagraphLength: 5})
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 processors, got %d", p.Len())
	}

	kept, err := p.Process(context.Background(), domain.PositionParagraphs([]string{"ab", "abcd", "abcdefg"}))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(kept) != 1 || kept[0].Text != "abcd" {
		t.Errorf("unexpected paragraphs: %v", kept)
	}
}

func TestFromSettings_UnregisteredProcessor(t *testing.T) {
	if _, err := FromSettings(NewRegistry(), domain.PipelineSettings{}); err == nil {
		t.Error("expected error for empty registry")
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		key      string
		expected int
	}{
		{"int value", map[string]any{"size": 100}, "size", 100},
		{"int64 value", map[string]any{"size": int64(200)}, "size", 200},
		{"float64 value", map[string]any{"size": float64(300)}, "size", 300},
		{"string value", map[string]any{"size": "400"}, "size", 0},
		{"missing key", map[string]any{"other": 100}, "size", 0},
		{"nil config", nil, "size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getIntFromConfig(tt.cfg, tt.key)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}
