// Package logging gives every camstream component a module-scoped
// *slog.Logger whose level can be configured per module and changed at
// runtime.
//
// Obtain loggers anywhere, including package init; Initialize later applies
// the configured format and levels to loggers already handed out:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"runner": "debug"},
//	})
//	logger := logging.GetLogger("runner").With("stream_id", id)
//	logger.Info("Pipeline running")
//
// Verbose forces debug everywhere. SetModuleLevel adjusts one module, as the
// PUT /api/logs/levels/{module} route does.
//
// Every record goes to up to three outputs:
//
//   - stdout (text or JSON) unless it is closed or /dev/null
//   - journald, when the socket exists, under Config.Identifier; attributes
//     become uppercase fields, so `journalctl -t camstream STREAM_ID=...`
//     filters one stream
//   - the in-memory History served by GET /api/logs, where module and
//     stream_id are lifted into LogEntry fields
//
// The TOML form read by config.LoadLoggingConfig:
//
//	[logging]
//	level = "info"
//	format = "json"
//	verbose = false
//
//	[logging.modules]
//	streams = "debug"
package logging
