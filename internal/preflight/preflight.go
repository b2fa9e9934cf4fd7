// Package preflight validates a checkpoint before the expensive download and
// conversion stages run. The main check guards the one failure mode the
// upstream converter is known for: checkpoints whose weights were already
// quantized (8-bit, 4-bit, ...) make convert_hf_to_gguf.py abort with a
// "cannot map tensor" error, because only full-precision weight tensors are
// supported.
package preflight

import (
	"fmt"

	"ggufctl/internal/common/fsutil"
	"ggufctl/pkg/types"
)

// fullPrecision lists quantization values that the upstream converter accepts.
var fullPrecision = map[string]bool{
	"":     true,
	"f16":  true,
	"f32":  true,
	"bf16": true,
	"none": true,
}

// FullPrecision reports whether quant names an unquantized weight format.
func FullPrecision(quant string) bool {
	return fullPrecision[quant]
}

// Report summarizes preflight findings for a local checkpoint.
type Report struct {
	// Quantization method detected from the hub metadata.
	Quantization string `json:"quantization"`
	// Weight shard files found locally (empty before download).
	Shards []string `json:"shards,omitempty"`
	// Non-fatal findings.
	Warnings []string `json:"warnings,omitempty"`
}

// CheckMeta validates hub metadata before anything is downloaded.
// A pre-quantized checkpoint is rejected here rather than after a
// multi-gigabyte download and a failed conversion run.
func CheckMeta(meta types.ModelMeta) error {
	if !FullPrecision(meta.Quantization) {
		return ErrPrequantized(meta.Quantization)
	}
	return nil
}

// CheckLocal inspects a downloaded checkpoint directory.
func CheckLocal(meta types.ModelMeta, dir string) (Report, error) {
	rep := Report{Quantization: meta.Quantization}
	if err := CheckMeta(meta); err != nil {
		return rep, err
	}
	shards, err := fsutil.WeightShards(dir)
	if err != nil {
		return rep, fmt.Errorf("inspect checkpoint: %w", err)
	}
	rep.Shards = shards
	if len(shards) == 0 {
		rep.Warnings = append(rep.Warnings, "no weight files (*.safetensors, *.bin) found")
	}
	if len(shards) > 1 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d checkpoint shards detected; the converter will merge them", len(shards)))
	}
	return rep, nil
}

// CheckConverter verifies the llama.cpp conversion script is present.
func CheckConverter(script string) error {
	if !fsutil.PathExists(script) {
		return ErrDependencyUnavailable(fmt.Sprintf("converter script not found at %s; sync the llama.cpp checkout first", script))
	}
	return nil
}
