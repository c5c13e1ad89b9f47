// Package logging provides a process-wide structured logger for cursordb.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. All subsystems
// obtain a logger through this package rather than constructing their own
// slog.Logger values, so that log level and output destination are
// controlled from a single place.
//
// # Initialisation
//
// Call Init (or InitDefault for sensible defaults) once at program startup:
//
//	if err := logging.Init(cfg.Logging); err != nil {
//	    log.Fatal(err)
//	}
//
// When Config.SeqURL is set, records are shipped to a Seq server in addition
// to the local handler. Close flushes pending batches.
//
// # Context helpers
//
// Several helpers return child loggers pre-populated with structured fields:
//
//	log := logging.WithConnection(id) // adds conn_id field
//	log := logging.WithTable(name)    // adds table field
//	log := logging.WithIndex(name)    // adds index field
package logging
