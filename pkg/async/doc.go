// Package async provides small concurrency helpers: panic-safe background
// goroutines with timeouts, and bounded-parallelism batch execution.
package async
