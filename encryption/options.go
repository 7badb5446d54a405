package encryption

import "log/slog"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for key lifecycle events.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
