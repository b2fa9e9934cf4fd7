package main

import (
	"path/filepath"
	"strings"
	"testing"

	"ggufctl/internal/config"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GGUFCTL_TEST_STR", "hello")
	if got := envStr("GGUFCTL_TEST_STR", "def"); got != "hello" {
		t.Fatalf("envStr = %q", got)
	}
	if got := envStr("GGUFCTL_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("envStr default = %q", got)
	}
	t.Setenv("GGUFCTL_TEST_INT", "42")
	if got := envInt("GGUFCTL_TEST_INT", 7); got != 42 {
		t.Fatalf("envInt = %d", got)
	}
	t.Setenv("GGUFCTL_TEST_INT", "not-a-number")
	if got := envInt("GGUFCTL_TEST_INT", 7); got != 7 {
		t.Fatalf("envInt fallback = %d", got)
	}
}

func TestSettingsMerge(t *testing.T) {
	s := defaultSettings()
	s.cfg.ModelsDir = "/from/env"

	root := newRootCmd()
	// flag set explicitly wins over the config file
	if err := root.PersistentFlags().Set("models-dir", "/from/flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	s.merge(root, config.Config{ModelsDir: "/from/file", CtxSize: 4096})
	if s.cfg.ModelsDir != "/from/env" {
		// merge consults the command's own flags; the root command here has
		// the flag marked changed, so the file value must not apply
		t.Fatalf("models dir = %q", s.cfg.ModelsDir)
	}
	if s.cfg.CtxSize != 4096 {
		t.Fatalf("ctx size = %d, want file value 4096", s.cfg.CtxSize)
	}
}

func TestResolveArtifact_ModelName(t *testing.T) {
	s := defaultSettings()
	s.cfg.ModelsDir = t.TempDir()

	got, err := resolveArtifact(s, "llama-3b")
	if err != nil {
		t.Fatalf("resolveArtifact: %v", err)
	}
	wantDir := filepath.Join(s.cfg.ModelsDir, "Llama-3.2-3B-Instruct")
	if !strings.HasPrefix(got, wantDir) {
		t.Fatalf("artifact = %q, want under %q", got, wantDir)
	}
	if !strings.HasSuffix(got, "-F16.gguf") {
		t.Fatalf("artifact = %q, want -F16.gguf suffix", got)
	}
}
