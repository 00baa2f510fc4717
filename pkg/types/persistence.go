package types

import "context"

// Persistence is the storage port the engine calls at startup (Load*) and
// after successful validation (Save*, Delete*). Implementations must make
// each call all-or-nothing. The engine never retries a failed call.
type Persistence interface {
	LoadSchema(ctx context.Context) ([]Characteristic, error)
	LoadGroups(ctx context.Context) ([]Group, error)
	LoadRecords(ctx context.Context) ([]Record, error)

	SaveSchema(ctx context.Context, c Characteristic) error
	SaveGroup(ctx context.Context, g Group) error
	SaveRecord(ctx context.Context, r Record) error

	DeleteSchema(ctx context.Context, name string) error
	DeleteGroup(ctx context.Context, name string) error
	DeleteRecord(ctx context.Context, id string) error
}

// ChangeSink is implemented by ports that also keep the change log.
type ChangeSink interface {
	AppendChange(ctx context.Context, c Change) error
	LoadChanges(ctx context.Context) ([]Change, error)
}

// Closer is implemented by ports that hold connections or files.
type Closer interface {
	Close() error
}
