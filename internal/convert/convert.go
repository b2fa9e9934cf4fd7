// Package convert drives llama.cpp's convert_hf_to_gguf.py over a local
// checkpoint. The script owns the GGUF format; this package only builds the
// invocation, applies skip-if-exists semantics, and classifies failures.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"ggufctl/internal/common/execx"
	"ggufctl/internal/common/fsutil"
	"ggufctl/internal/preflight"
)

// DefaultOuttype is passed to --outtype when metadata gives no better answer.
const DefaultOuttype = "f16"

// Converter shells out to the llama.cpp conversion script.
type Converter struct {
	python string
	script string
	log    zerolog.Logger

	// run executes external commands; replaced in tests.
	run func(ctx context.Context, onLine execx.LineFunc, name string, args ...string) error
}

// New builds a Converter around the given conversion script.
// pythonBin defaults to "python3".
func New(pythonBin, script string, log zerolog.Logger) *Converter {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &Converter{
		python: pythonBin,
		script: script,
		log:    log,
		run: func(ctx context.Context, onLine execx.LineFunc, name string, args ...string) error {
			r := &execx.Runner{}
			return r.Run(ctx, onLine, name, args...)
		},
	}
}

// ArtifactPath returns where the GGUF for srcDir/outtype is written:
// <srcDir>/<base(srcDir)>-<OUTTYPE>.gguf.
func ArtifactPath(srcDir, outtype string) string {
	if outtype == "" {
		outtype = DefaultOuttype
	}
	name := fmt.Sprintf("%s-%s.gguf", filepath.Base(srcDir), strings.ToUpper(outtype))
	return filepath.Join(srcDir, name)
}

// Convert runs the conversion script over srcDir and returns the artifact
// path. An existing artifact short-circuits unless force is set. A converter
// failure mentioning "cannot map tensor" is reported as ErrCannotMapTensor,
// the upstream symptom of pre-quantized weight tensors.
func (c *Converter) Convert(ctx context.Context, srcDir, outtype string, force bool) (string, error) {
	if outtype == "" {
		outtype = DefaultOuttype
	}
	if err := preflight.CheckConverter(c.script); err != nil {
		return "", err
	}
	out := ArtifactPath(srcDir, outtype)
	if fsutil.PathExists(out) && !force {
		c.log.Info().Str("artifact", out).Msg("GGUF already exists, skipping conversion")
		return out, nil
	}
	c.log.Info().Str("src", srcDir).Str("outtype", outtype).Msg("converting to GGUF")
	onLine := func(l string) { c.log.Debug().Str("tool", "convert").Msg(l) }
	err := c.run(ctx, onLine, c.python, c.script, srcDir, "--outtype", outtype, "--outfile", out)
	if err != nil {
		var xe *execx.ExitError
		if errors.As(err, &xe) && strings.Contains(xe.Stderr, "cannot map tensor") {
			return "", ErrCannotMapTensor(xe.Stderr)
		}
		return "", fmt.Errorf("convert %s: %w", srcDir, err)
	}
	if !fsutil.PathExists(out) {
		return "", fmt.Errorf("converter finished but %s is missing", out)
	}
	c.log.Info().Str("artifact", out).Msg("conversion complete")
	return out, nil
}
