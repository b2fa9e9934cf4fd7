package preflight

import "fmt"

// prequantizedError rejects checkpoints with already-quantized weights.
// The upstream converter only maps full-precision ("default") weight
// tensors and fails these with "cannot map tensor".
type prequantizedError struct{ quant string }

func (e prequantizedError) Error() string {
	return fmt.Sprintf("checkpoint weights are already quantized (%s): convert_hf_to_gguf.py will fail with \"cannot map tensor\"; use an unquantized source model instead", e.quant)
}

// ErrPrequantized constructs a prequantizedError for the given quant method.
func ErrPrequantized(quant string) error { return prequantizedError{quant: quant} }

// IsPrequantized reports whether err indicates a pre-quantized checkpoint.
func IsPrequantized(err error) bool {
	_, ok := err.(prequantizedError)
	return ok
}

// dependencyUnavailableError signals a missing external dependency
// (llama.cpp checkout, converter script, python) so callers can return
// 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed external dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
