// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the recurrence engine, so the recurrence math and the scanner stay
// independent of any specific database technology.
package store
