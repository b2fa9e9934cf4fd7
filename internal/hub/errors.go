package hub

// repoNotFoundError signals a missing repo or revision for 404 mapping.
type repoNotFoundError struct{ ref string }

func (e repoNotFoundError) Error() string { return "repo not found: " + e.ref }

// ErrRepoNotFound constructs a repoNotFoundError.
func ErrRepoNotFound(ref string) error { return repoNotFoundError{ref: ref} }

// IsRepoNotFound reports whether err indicates a missing repo/revision/file.
func IsRepoNotFound(err error) bool {
	_, ok := err.(repoNotFoundError)
	return ok
}
