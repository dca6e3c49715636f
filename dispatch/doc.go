// Package dispatch provides the two execution contexts values travel through on their way from
// an event source to a handler: a background worker pool where producers run, and a
// single-goroutine Looper that plays the role of a UI thread. Everything posted to a Looper runs
// in posting order, one task at a time, so handlers running there never need their own locking.
package dispatch
