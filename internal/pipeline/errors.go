package pipeline

// tooBusyError signals that the job cap is reached, for 429 mapping.
type tooBusyError struct{ repo string }

func (e tooBusyError) Error() string { return "too busy to accept job for: " + e.repo }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(repo string) error { return tooBusyError{repo: repo} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// jobNotFoundError signals an unknown job id for 404 mapping.
type jobNotFoundError struct{ id string }

func (e jobNotFoundError) Error() string { return "job not found: " + e.id }

// ErrJobNotFound constructs a jobNotFoundError.
func ErrJobNotFound(id string) error { return jobNotFoundError{id: id} }

// IsJobNotFound reports whether err indicates a missing job id.
func IsJobNotFound(err error) bool {
	_, ok := err.(jobNotFoundError)
	return ok
}
