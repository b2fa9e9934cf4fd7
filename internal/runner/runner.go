// Package runner launches llama-cli over a converted GGUF artifact as a
// smoke test. Inference itself is entirely upstream's business.
package runner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"ggufctl/internal/catalog"
	"ggufctl/internal/common/execx"
	"ggufctl/internal/common/fsutil"
	"ggufctl/internal/preflight"
)

// Defaults applied when corresponding Opts fields are unset.
const (
	DefaultCtxSize = 8192
	DefaultPrompt  = "Write a 1000-word story."
)

// Opts tunes a llama-cli invocation.
type Opts struct {
	// GPULayers is the --n-gpu-layers value; <= 0 means derive it from
	// the artifact name via the recommendation table.
	GPULayers int
	// CtxSize is the --ctx-size value; <= 0 means DefaultCtxSize.
	CtxSize int
	// Prompt passed with -p; empty means DefaultPrompt.
	Prompt string
}

// Runner spawns llama-cli.
type Runner struct {
	bin string
	log zerolog.Logger

	// run executes external commands; replaced in tests.
	run func(ctx context.Context, onLine execx.LineFunc, name string, args ...string) error
}

// New builds a Runner around the llama-cli binary at bin.
func New(bin string, log zerolog.Logger) *Runner {
	return &Runner{
		bin: bin,
		log: log,
		run: func(ctx context.Context, onLine execx.LineFunc, name string, args ...string) error {
			r := &execx.Runner{}
			return r.Run(ctx, onLine, name, args...)
		},
	}
}

// args builds the llama-cli argument list for a gguf path.
func args(ggufPath string, o Opts) []string {
	layers := o.GPULayers
	if layers <= 0 {
		layers = catalog.LayersForName(ggufPath)
	}
	ctxSize := o.CtxSize
	if ctxSize <= 0 {
		ctxSize = DefaultCtxSize
	}
	prompt := o.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return []string{
		"-m", ggufPath,
		"--n-gpu-layers", strconv.Itoa(layers),
		"--ctx-size", strconv.Itoa(ctxSize),
		"-p", prompt,
	}
}

// Run executes llama-cli against ggufPath, streaming output lines to onLine.
// It blocks until the process exits or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, ggufPath string, o Opts, onLine execx.LineFunc) error {
	if !fsutil.PathExists(r.bin) {
		return preflight.ErrDependencyUnavailable(fmt.Sprintf("llama-cli not found at %s; build the llama.cpp checkout first", r.bin))
	}
	if !fsutil.PathExists(ggufPath) {
		return fmt.Errorf("gguf artifact not found at %s", ggufPath)
	}
	a := args(ggufPath, o)
	r.log.Info().Str("gguf", ggufPath).Strs("args", a).Msg("running llama-cli")
	if err := r.run(ctx, onLine, r.bin, a...); err != nil {
		return fmt.Errorf("llama-cli: %w", err)
	}
	return nil
}
