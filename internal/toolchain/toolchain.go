// Package toolchain manages the external llama.cpp checkout: cloning,
// updating, and building the release binaries the pipeline shells out to.
// All conversion and inference logic lives upstream; this package only
// drives git and cmake.
package toolchain

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"ggufctl/internal/common/execx"
	"ggufctl/internal/common/fsutil"
	"ggufctl/internal/preflight"
)

// RepoURL is the upstream llama.cpp repository.
const RepoURL = "https://github.com/ggerganov/llama.cpp"

// GPU backend selectors for the CMake configure step.
const (
	BackendNone  = "none"
	BackendCUDA  = "cuda"
	BackendMetal = "metal"
)

// Checkout manages a llama.cpp working copy rooted at Dir.
type Checkout struct {
	dir     string
	backend string
	log     zerolog.Logger

	// run executes external commands; replaced in tests.
	run func(ctx context.Context, dir string, onLine execx.LineFunc, name string, args ...string) error
}

// New returns a Checkout for dir with the given GPU backend
// (BackendNone, BackendCUDA or BackendMetal).
func New(dir, backend string, log zerolog.Logger) *Checkout {
	if backend == "" {
		backend = BackendNone
	}
	return &Checkout{
		dir:     dir,
		backend: backend,
		log:     log,
		run: func(ctx context.Context, dir string, onLine execx.LineFunc, name string, args ...string) error {
			r := &execx.Runner{Dir: dir}
			return r.Run(ctx, onLine, name, args...)
		},
	}
}

// Dir returns the checkout root.
func (c *Checkout) Dir() string { return c.dir }

// BuildDir returns the CMake build directory.
func (c *Checkout) BuildDir() string { return filepath.Join(c.dir, "build") }

// ConvertScript returns the path of the HF→GGUF conversion script.
func (c *Checkout) ConvertScript() string {
	return filepath.Join(c.dir, "convert_hf_to_gguf.py")
}

// LlamaCLI returns the path of the llama-cli binary produced by Build.
func (c *Checkout) LlamaCLI() string {
	return filepath.Join(c.BuildDir(), "bin", "llama-cli")
}

// Sync clones the repository on first use, otherwise fast-forwards the
// existing checkout and pins it to master.
func (c *Checkout) Sync(ctx context.Context) error {
	if !execx.LookPath("git") {
		return preflight.ErrDependencyUnavailable("git not found on PATH")
	}
	onLine := func(l string) { c.log.Debug().Str("tool", "git").Msg(l) }
	if !fsutil.PathExists(filepath.Join(c.dir, ".git")) {
		if err := fsutil.EnsureDir(filepath.Dir(c.dir)); err != nil {
			return err
		}
		c.log.Info().Str("dir", c.dir).Msg("cloning llama.cpp")
		if err := c.run(ctx, "", onLine, "git", "clone", RepoURL, c.dir); err != nil {
			return fmt.Errorf("clone llama.cpp: %w", err)
		}
		return nil
	}
	c.log.Info().Str("dir", c.dir).Msg("updating llama.cpp")
	if err := c.run(ctx, c.dir, onLine, "git", "pull", "--ff-only"); err != nil {
		return fmt.Errorf("update llama.cpp: %w", err)
	}
	if err := c.run(ctx, c.dir, onLine, "git", "checkout", "master"); err != nil {
		return fmt.Errorf("checkout master: %w", err)
	}
	return nil
}

// configureArgs builds the CMake configure invocation for the selected backend.
func (c *Checkout) configureArgs() []string {
	args := []string{
		"-S", c.dir,
		"-B", c.BuildDir(),
		"-DCMAKE_BUILD_TYPE=Release",
	}
	switch c.backend {
	case BackendCUDA:
		args = append(args, "-DGGML_CUDA=ON")
	case BackendMetal:
		args = append(args, "-DGGML_METAL=ON")
	}
	return args
}

// Build configures and compiles the release binaries, then verifies that
// llama-cli exists.
func (c *Checkout) Build(ctx context.Context) error {
	if !execx.LookPath("cmake") {
		return preflight.ErrDependencyUnavailable("cmake not found on PATH")
	}
	onLine := func(l string) { c.log.Debug().Str("tool", "cmake").Msg(l) }
	c.log.Info().Str("backend", c.backend).Msg("configuring llama.cpp build")
	if err := c.run(ctx, "", onLine, "cmake", c.configureArgs()...); err != nil {
		return fmt.Errorf("configure llama.cpp: %w", err)
	}
	c.log.Info().Msg("building llama.cpp")
	if err := c.run(ctx, "", onLine, "cmake", "--build", c.BuildDir(), "-j"); err != nil {
		return fmt.Errorf("build llama.cpp: %w", err)
	}
	if !fsutil.PathExists(c.LlamaCLI()) {
		return fmt.Errorf("build finished but %s is missing", c.LlamaCLI())
	}
	return nil
}

// Ready reports whether both the converter script and the llama-cli binary
// are available without running anything.
func (c *Checkout) Ready() bool {
	return fsutil.PathExists(c.ConvertScript()) && fsutil.PathExists(c.LlamaCLI())
}
