// Package events carries notifications about recurrence activity to
// downstream consumers such as notification delivery.
//
// The scanner and the recurrence service emit events without knowing which
// handlers will process them. Handlers run synchronously after the
// generating transaction has committed; a failing handler never undoes a
// generation.
package events
