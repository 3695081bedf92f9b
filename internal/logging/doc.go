// Package logging provides structured logging for castwatch.
//
// This package wraps a process-wide zap logger with convenience functions for
// the events the monitor, the HTTP server and the publisher report.
//
// # Log Levels
//
//   - Debug: per-attempt status reads, WebSocket client churn, MQTT publishes
//   - Info: device list changes, status changes, HTTP requests, lifecycle
//   - Warn: discovery failures, unreachable devices, dropped duplicates
//   - Error: fatal loop errors, server failures
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Monitor started",
//	    zap.Duration("device_refresh", 10*time.Second),
//	    zap.Duration("status_refresh", time.Second),
//	)
//
// # Change Logging
//
//	logging.LogDeviceChanges([]string{"Kitchen"}, nil)
//	logging.LogStatusChanges(changes)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.InitializeWithFormat("info", "console"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and CASTWATCH_LOG_LEVEL is unset the logger is a
// no-op, which keeps one-shot CLI commands quiet.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once during startup.
package logging
