// Package memory provides an in-process implementation of the store
// interfaces. Transactions are serialized by a mutex and rolled back by
// restoring a snapshot, which makes it suitable for tests and single-process
// local runs.
package memory
