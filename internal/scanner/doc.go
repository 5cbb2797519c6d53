// Package scanner runs the periodic maintenance pass that materializes due
// occurrences of recurrence definitions into tasks.
//
// A Generator handles one definition per call inside a single storage
// transaction. A Scanner selects the due definitions for one tick and fans
// them out over a bounded WorkerPool. A Scheduler drives ticks from a cron
// spec and never lets two ticks overlap.
package scanner
