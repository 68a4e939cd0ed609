// Package session owns one browser session per watched symbol.
//
// Each symbol moves through Absent -> Pending -> Ready. Creation failures
// collapse the entry back to Absent so the next subscription retries
// cleanly; there is no Failed state. Concurrent first subscriptions to the
// same symbol share a single in-flight creation: the first caller installs
// a Pending entry under the pool lock and later callers wait on it instead
// of starting their own.
package session
