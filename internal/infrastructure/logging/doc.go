// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for the audit pipeline and log shippers
//   - Development: colored console output (LOG_DEV=true)
//
// Components receive a named child logger and log with typed fields:
//
//	logger := logging.NewOrNop(logging.DefaultConfig())
//	log := logger.Component("lifecycle")
//	log.Info("instance launched", zap.String("instance_id", id.String()))
package logging
