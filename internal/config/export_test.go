package config

import "log/slog"

// WithLogger overrides the logger used by the manager.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}
