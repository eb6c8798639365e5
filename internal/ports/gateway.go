package ports

import (
	"context"
	"encoding/json"
)

// Gateway defines the interface to the remote path-addressed JSON
// document store. It is deliberately thin: no entity semantics, only
// collection reads and single-record writes. It is the only component
// allowed to perform network I/O.
type Gateway interface {
	// FetchCollection returns a mapping of remote-assigned id to the
	// raw record at that id, or an empty map if the path has no
	// children. Fails with *entities.TransportError on network or
	// HTTP failure and *entities.DecodeError on a malformed body.
	FetchCollection(ctx context.Context, path string) (map[string]json.RawMessage, error)

	// CreateEntity stores a new record under path and returns the id
	// the remote store assigned to it.
	CreateEntity(ctx context.Context, path string, fields any) (string, error)

	// UpdateEntity replaces the record at path/id in full.
	UpdateEntity(ctx context.Context, path, id string, fields any) error

	// DeleteEntity removes the record at path/id.
	DeleteEntity(ctx context.Context, path, id string) error
}
