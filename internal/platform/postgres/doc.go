// Package postgres provides the PostgreSQL implementations of the storage
// interfaces defined in the internal/store package, plus the Transactor that
// binds them to one database transaction.
//
// Generation claims rely on row locks: ClaimForGeneration uses
// FOR UPDATE SKIP LOCKED so a scanner worker never queues behind another,
// while GetForUpdate waits so owner edits serialize behind an in-flight
// generation.
package postgres
