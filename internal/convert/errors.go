package convert

import "fmt"

// cannotMapTensorError classifies the upstream converter's rejection of
// pre-quantized weight tensors.
type cannotMapTensorError struct{ detail string }

func (e cannotMapTensorError) Error() string {
	return fmt.Sprintf("converter could not map a tensor (weights are likely pre-quantized; only full-precision tensors are supported): %s", e.detail)
}

// ErrCannotMapTensor constructs a cannotMapTensorError with the stderr detail.
func ErrCannotMapTensor(detail string) error { return cannotMapTensorError{detail: detail} }

// IsCannotMapTensor reports whether err is the upstream "cannot map tensor" failure.
func IsCannotMapTensor(err error) bool {
	_, ok := err.(cannotMapTensorError)
	return ok
}
