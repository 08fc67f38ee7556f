// Package session holds the authenticated actor record, its Redis-backed
// store, and the signed token that ties a client back to its stored
// session.
//
// Sessions carry an absolute expiry fixed at creation time. The store
// enforces it on every read; Touch refreshes the last-activity stamp but
// never extends the lifetime.
package session
