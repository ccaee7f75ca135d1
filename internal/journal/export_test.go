package journal

import "context"

// DBPool is the interface the journal requires from its connection pool.
type DBPool = dbPool

// WithNewPool overrides the connection pool constructor.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = newPool
	}
}
