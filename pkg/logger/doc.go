// Package logger builds configured slog.Logger instances. Production gets
// JSON output at info level for log aggregation, development gets text
// output at debug level. Options follow the functional-option style used
// across the codebase.
package logger
