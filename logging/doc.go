// Package logging provides the minimal Logger interface used throughout the
// runtime and the assistants, plus adapters:
//
//   - SlogAdapter wrapping log/slog
//   - ZapAdapter wrapping go.uber.org/zap (used by the CLI)
//   - NoOpLogger for silent operation (tests, library use)
//
// Usage:
//
//	logger, err := logging.NewZapLogger(logging.LogLevelInfo, "console", os.Stderr)
//	r := runner.New(agent, func(o *runner.Options) { o.Logger = logger })
//
// Messages are dotted event names ("tool.call.start") followed by key/value
// pairs.
package logging
