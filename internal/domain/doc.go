// Package domain contains the core business entities, value objects, and
// domain logic of the recurrence engine: recurrence definitions, their
// lifecycle, task templates and the tasks materialized from them. It is
// independent of any storage technology or delivery mechanism.
package domain
