package pipeline

// Event represents a pipeline lifecycle event.
// Minimal and stable: name + job/repo, optional fields via key/values.
type Event struct {
	Name   string
	JobID  string
	Repo   string
	Fields map[string]any
}

// EventPublisher receives events from the pipeline. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
