package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGGUFScanner_ScanFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.safetensors",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	s := NewGGUFScanner()
	models, err := s.Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	for _, m := range models {
		if !strings.HasSuffix(strings.ToLower(m.ID), ".gguf") {
			t.Fatalf("id not gguf: %s", m.ID)
		}
	}
}

func TestGGUFScanner_FindsConverterOutputInSubdirs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Llama-3.2-3B-Instruct")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	gguf := filepath.Join(sub, "Llama-3.2-3B-Instruct-F16.gguf")
	if err := os.WriteFile(gguf, []byte("GGUFxxxx"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// checkpoint files next to the artifact must be ignored
	if err := os.WriteFile(filepath.Join(sub, "model.safetensors"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := NewGGUFScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	m := models[0]
	if m.ID != "Llama-3.2-3B-Instruct-F16.gguf" || m.Path != gguf {
		t.Fatalf("unexpected model: %+v", m)
	}
	if m.Quant != "F16" {
		t.Fatalf("quant = %q, want F16", m.Quant)
	}
	if m.Family != "llama" {
		t.Fatalf("family = %q, want llama", m.Family)
	}
	if m.SizeBytes != 8 {
		t.Fatalf("size = %d, want 8", m.SizeBytes)
	}
}

func TestGGUFScanner_QuantTokens(t *testing.T) {
	cases := map[string]string{
		"TinyLlama-1.1B-Chat-Q4_K_M": "Q4_K_M",
		"Mistral-7B-Q8_0":            "Q8_0",
		"DeepSeek-R1-32B-BF16":       "BF16",
		"some-model":                 "",
	}
	for stem, want := range cases {
		if got := parseQuant(stem); got != want {
			t.Fatalf("parseQuant(%q) = %q, want %q", stem, got, want)
		}
	}
}

func TestGGUFScanner_Sorted(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"c.gguf", "a.gguf", "b.gguf"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	models, err := NewGGUFScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for i := 1; i < len(models); i++ {
		if models[i-1].ID >= models[i].ID {
			t.Fatalf("not sorted: %v", models)
		}
	}
}
