// Package preview renders degraded previews of gated media. A degraded
// viewer only ever receives these renditions; the original bytes stay
// behind the access gate.
package preview

import (
	"bytes"
	"fmt"
	"io"

	"github.com/h2non/bimg"
)

// Config holds configuration for degraded preview rendering.
type Config struct {
	// BlurSigma is the Gaussian blur sigma. Higher obscures more detail.
	BlurSigma float64
	// MaxWidth limits the preview width (aspect ratio preserved).
	MaxWidth int
	// Quality for JPEG encoding (1-100). Previews are throwaway, keep low.
	Quality int
	// StripMetadata removes EXIF data from the preview (default: true).
	StripMetadata bool
}

// DefaultConfig returns defaults strong enough that the preview cannot be
// deblurred into a usable copy of the original.
func DefaultConfig() Config {
	return Config{
		BlurSigma:     12,
		MaxWidth:      480,
		Quality:       40,
		StripMetadata: true,
	}
}

// Renderer produces blurred, downscaled preview renditions.
type Renderer struct {
	config Config
}

// NewRenderer creates a preview renderer with the given config.
func NewRenderer(config Config) *Renderer {
	if config.BlurSigma <= 0 {
		config.BlurSigma = DefaultConfig().BlurSigma
	}
	if config.Quality <= 0 {
		config.Quality = DefaultConfig().Quality
	}
	return &Renderer{config: config}
}

// Render reads the original image and returns the degraded preview bytes.
func (r *Renderer) Render(src io.Reader) ([]byte, error) {
	inputBytes, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read source image: %w", err)
	}
	return r.RenderBytes(inputBytes)
}

// RenderBytes renders a degraded preview from in-memory image bytes.
func (r *Renderer) RenderBytes(inputBytes []byte) ([]byte, error) {
	if len(inputBytes) == 0 {
		return nil, fmt.Errorf("empty source image")
	}

	img := bimg.NewImage(inputBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	options := bimg.Options{
		Type:          bimg.JPEG,
		Quality:       r.config.Quality,
		StripMetadata: r.config.StripMetadata,
		GaussianBlur: bimg.GaussianBlur{
			Sigma: r.config.BlurSigma,
		},
	}
	if r.config.MaxWidth > 0 && metadata.Size.Width > r.config.MaxWidth {
		options.Width = r.config.MaxWidth
	}

	outputBytes, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	return outputBytes, nil
}

// RenderReader is a convenience wrapper returning a reader over the
// rendered preview.
func (r *Renderer) RenderReader(src io.Reader) (io.Reader, error) {
	out, err := r.Render(src)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}
