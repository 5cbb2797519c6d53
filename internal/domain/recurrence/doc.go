// Package recurrence holds the pure recurrence engine: computing the next
// candidate date of a pattern, resolving it against the skip policy, and
// materializing a task from a definition's template.
//
// Nothing in this package reads a clock, touches storage or blocks. Callers
// pass every input explicitly, so the same inputs always produce the same
// output.
package recurrence
