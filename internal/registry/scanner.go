package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ggufctl/internal/common/fsutil"
	"ggufctl/pkg/types"
)

// GGUFScanner discovers converted GGUF artifacts in a directory tree one
// level deep: the models dir itself plus each per-checkpoint subdirectory,
// which is where the converter writes its output.
type GGUFScanner struct{}

// NewGGUFScanner returns a scanner.
func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// quantRe matches precision/quantization tokens in artifact filenames,
// e.g. F16, BF16, Q4_K_M, Q8_0.
var quantRe = regexp.MustCompile(`(?i)\b(F16|F32|BF16|Q[0-9](?:_[A-Z0-9]+)*)\b`)

// families recognized in artifact names, checked in order.
var families = []string{"llama", "qwen", "deepseek", "mistral", "phi", "gemma"}

// Scan walks dir (home-expanded) and returns one Model per *.gguf file,
// sorted by ID. Quant and family are parsed from the filename.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			sub, err := os.ReadDir(filepath.Join(abs, e.Name()))
			if err != nil {
				continue
			}
			for _, se := range sub {
				if se.IsDir() {
					continue
				}
				if m, ok := artifact(filepath.Join(abs, e.Name()), se.Name()); ok {
					models = append(models, m)
				}
			}
			continue
		}
		if m, ok := artifact(abs, e.Name()); ok {
			models = append(models, m)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func artifact(dir, name string) (types.Model, bool) {
	if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
		return types.Model{}, false
	}
	p := filepath.Join(dir, name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := types.Model{
		ID:        name,
		Name:      stem,
		Path:      p,
		Quant:     parseQuant(stem),
		Family:    parseFamily(stem),
		SizeBytes: fsutil.FileSize(p),
	}
	if m.Quant != "" {
		m.Name = fmt.Sprintf("%s (%s)", strings.TrimSuffix(stem, "-"+m.Quant), m.Quant)
	}
	return m, true
}

func parseQuant(stem string) string {
	matches := quantRe.FindAllString(stem, -1)
	if len(matches) == 0 {
		return ""
	}
	// last token wins: converter output is named <checkpoint>-<OUTTYPE>
	return strings.ToUpper(matches[len(matches)-1])
}

func parseFamily(stem string) string {
	lower := strings.ToLower(stem)
	for _, f := range families {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}
