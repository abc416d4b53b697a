// Package util provides small generic helpers shared across packages:
// slice operations, string sanitization, and log-safe secret masking.
package util
