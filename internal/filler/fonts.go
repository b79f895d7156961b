package filler

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
)

// StandardFont is the built-in Latin-only font used when no Unicode font loads.
const StandardFont = "Helvetica"

// FontConfig is the font cascade of one fill call: OverridePath, then
// BundledPath, then StandardFont. Empty paths are skipped.
type FontConfig struct {
	OverridePath string
	BundledPath  string
	// CacheDir receives installed font metrics when pdfcpu has no
	// configuration directory of its own.
	CacheDir string
}

func (c FontConfig) candidates() []string {
	var out []string
	for _, p := range []string{c.OverridePath, c.BundledPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolvedFont is the font every stamp of one fill call is drawn with.
type resolvedFont struct {
	Name string
	Path string // empty for StandardFont
}

func (r resolvedFont) unicode() bool {
	return r.Path != ""
}

// needsUnicode reports whether any text has a character outside Latin-1.
func needsUnicode(texts []string) bool {
	enc := charmap.ISO8859_1.NewEncoder()
	for _, t := range texts {
		if _, err := enc.String(t); err != nil {
			return true
		}
	}
	return false
}

// resolveFont walks the cascade. A candidate is accepted when it parses,
// covers every rune in texts and registers with pdfcpu; a rejected
// candidate is logged and the next one tried. The caller must hold pdfcpuMu.
func resolveFont(logger *slog.Logger, cfg FontConfig, texts []string) (resolvedFont, error) {
	for _, path := range cfg.candidates() {
		name, err := loadCandidate(cfg, path, texts)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Font candidate not present.", "path", path)
			continue
		}
		if err != nil {
			logger.Warn("Font candidate rejected.", "path", path, "error", err)
			continue
		}
		logger.Debug("Resolved Unicode font.", "path", path, "font", name)
		return resolvedFont{Name: name, Path: path}, nil
	}
	if needsUnicode(texts) {
		return resolvedFont{}, apperrors.New(apperrors.KindFontUnavailable,
			"values contain characters outside Latin-1 and no Unicode font could be loaded (tried %d candidates)", len(cfg.candidates()))
	}
	return resolvedFont{Name: StandardFont}, nil
}

func loadCandidate(cfg FontConfig, path string, texts []string) (string, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".ttf" {
		return "", fmt.Errorf("unsupported font file type %q", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read font: %w", err)
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse font: %w", err)
	}

	var buf sfnt.Buffer
	for _, t := range texts {
		for _, r := range t {
			if unicode.IsSpace(r) || unicode.IsControl(r) {
				continue
			}
			idx, err := f.GlyphIndex(&buf, r)
			if err != nil {
				return "", fmt.Errorf("glyph lookup for %q: %w", r, err)
			}
			if idx == 0 {
				return "", fmt.Errorf("no glyph for %q", r)
			}
		}
	}

	name, err := f.Name(&buf, sfnt.NameIDPostScript)
	if err != nil || name == "" {
		return "", fmt.Errorf("font has no PostScript name: %v", err)
	}
	if err := installFont(cfg, path, name); err != nil {
		return "", err
	}
	return name, nil
}

// installFont makes the font at path available to pdfcpu stamps under name.
func installFont(cfg FontConfig, path, name string) error {
	if font.IsUserFont(name) {
		return nil
	}
	if font.UserFontDir == "" {
		dir := cfg.CacheDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "pdftemplatefill-fonts")
		}
		font.UserFontDir = dir
	}
	if err := os.MkdirAll(font.UserFontDir, 0o755); err != nil {
		return fmt.Errorf("failed to create font directory: %w", err)
	}
	if err := api.InstallFonts([]string{path}); err != nil {
		return fmt.Errorf("failed to install font: %w", err)
	}
	if !font.IsUserFont(name) {
		return fmt.Errorf("font installed but not registered as %q", name)
	}
	return nil
}
