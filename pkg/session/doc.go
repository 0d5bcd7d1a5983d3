/*
Package session implements preview session management and keyed locking.

It provides high-level abstractions for handling concurrent access to preview
states and flows across multiple replicas, combining local reference-counted
mutexes with an optional distributed lock and long-term storage adapters.
*/
package session
