// Package logger provides structured logging for the script runtime using
// zerolog.
//
// The host, the task ledger and the pipeline merge log through component
// loggers obtained from Get, so every line carries a component field and,
// inside a script run, the run identifier.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//	  output: "stderr"
//
// # Usage
//
//	log := logger.Get("tasks")
//	log.Debug("drain generation", logger.Fields(logger.FieldGeneration, 2))
package logger
