// Package fontkit provides the fonts used to calibrate recovered font sizes
// and to render fallback plates.
package fontkit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/slidex-project/slidex/document"
)

// Provider resolves a truetype font for a numeric weight. Recovered text is
// mapped to the nearest available face; an exact family match with whatever
// the slide was rendered in is best-effort by design of the pipeline.
type Provider struct {
	family   string
	regular  *truetype.Font
	semiBold *truetype.Font
	bold     *truetype.Font
}

// Load reads <family>-Regular.ttf, <family>-SemiBold.ttf and
// <family>-Bold.ttf from basePath.
func Load(basePath, family string) (*Provider, error) {
	regular, err := parseFontFile(filepath.Join(basePath, family+"-Regular.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s regular font: %w", family, err)
	}
	semiBold, err := parseFontFile(filepath.Join(basePath, family+"-SemiBold.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s semiBold font: %w", family, err)
	}
	bold, err := parseFontFile(filepath.Join(basePath, family+"-Bold.ttf"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s bold font: %w", family, err)
	}
	return &Provider{family: family, regular: regular, semiBold: semiBold, bold: bold}, nil
}

// Builtin returns a provider backed by the embedded Go fonts. Used when no
// font directory is configured, and by tests.
func Builtin() *Provider {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(fmt.Sprintf("embedded regular font is invalid: %v", err))
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		panic(fmt.Sprintf("embedded bold font is invalid: %v", err))
	}
	return &Provider{family: "SansSerif", regular: regular, semiBold: bold, bold: bold}
}

// Family returns the provider's family name as recorded in recovered styles.
func (p *Provider) Family() string { return p.family }

// ByWeight maps a numeric CSS-style weight to the nearest loaded face.
func (p *Provider) ByWeight(weight int) *truetype.Font {
	switch {
	case weight >= document.BoldWeight:
		return p.bold
	case weight >= document.SemiBoldWeight:
		return p.semiBold
	default:
		return p.regular
	}
}

func parseFontFile(path string) (*truetype.Font, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return truetype.Parse(fontBytes)
}
