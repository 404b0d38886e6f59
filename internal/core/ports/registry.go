package ports

// Session is one live connection as seen by the registry.
type Session interface {
	ID() string
	// Send queues a frame without blocking; false means the session cannot take it.
	Send(event string, payload []byte) bool
	Close() error
}
