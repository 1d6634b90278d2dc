package tender

import (
	"context"
	"io"
	"time"
)

// IDStore persists the identifiers reported by previous runs.
type IDStore interface {
	Load(ctx context.Context) (IDSet, error)
	Append(ctx context.Context, ids []string) error
}

// Portal opens browser sessions against the procurement search page.
type Portal interface {
	Open(ctx context.Context) (Session, error)
}

// Session is a loaded search page that accepts phrase searches.
type Session interface {
	Search(ctx context.Context, phrase string) ([]Row, error)
	Close() error
}

// ArtifactStore writes result artifacts and returns a URI.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Notifier delivers a finished batch to an operator or downstream system.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Notification is the payload handed to every Notifier.
type Notification struct {
	RunID        string
	Date         time.Time
	Body         []byte
	ArtifactName string
	ArtifactPath string
	Records      int
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for artifact naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}
