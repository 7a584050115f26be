package preview

import (
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BlurSigma < 8 {
		t.Errorf("Default blur sigma %v too weak to obscure content", cfg.BlurSigma)
	}
	if cfg.Quality >= 85 {
		t.Errorf("Preview quality %d should be well below original quality", cfg.Quality)
	}
	if !cfg.StripMetadata {
		t.Error("Previews must strip metadata by default")
	}
}

func TestNewRenderer_BackfillsZeroValues(t *testing.T) {
	r := NewRenderer(Config{})

	if r.config.BlurSigma != DefaultConfig().BlurSigma {
		t.Errorf("Expected default sigma, got %v", r.config.BlurSigma)
	}
	if r.config.Quality != DefaultConfig().Quality {
		t.Errorf("Expected default quality, got %d", r.config.Quality)
	}
}

func TestRenderBytes_EmptyInput(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	if _, err := r.RenderBytes(nil); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestRender_InvalidImage(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	_, err := r.Render(strings.NewReader("not an image"))
	if err == nil {
		t.Error("Expected error for non-image bytes")
	}
}
