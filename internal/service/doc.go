// Package service contains the owner-facing use cases of the recurrence
// engine. It coordinates definitions, the recurrence engine and the scanner's
// generator behind RecurrenceService.
//
// Every operation is addressed by definition id and exchanges calendar dates
// as YYYY-MM-DD strings. Edits lock the definition row for their
// transaction, so an edit issued while a generation is in flight takes effect
// only after that generation commits.
package service
