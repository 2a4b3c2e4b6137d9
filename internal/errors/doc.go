// Package errors defines the typed errors and sentinels shared across the
// harness: startup failures, process failures, timeout sentinels, and
// payload decode failures.
package errors
