package db

import (
	"context"
	"fmt"
)

// Store backends accepted by Open.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Open returns the store for backend together with a function releasing it.
// The Mongo backend connects, pings and ensures indexes before returning.
func Open(ctx context.Context, backend, uri, database string) (Store, func(context.Context) error, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), func(context.Context) error { return nil }, nil
	case BackendMongo:
		client, err := ConnectMongo(ctx, uri)
		if err != nil {
			return nil, nil, err
		}
		mdb := client.Database(database)
		if err := EnsureIndexes(ctx, mdb); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return NewMongoStore(mdb), client.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
