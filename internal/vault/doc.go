// Package vault stores one-time backup codes for MFA recovery.
//
// Only identity-salted SHA-256 hashes are persisted. Consumption and
// regeneration are single Redis scripts, so a code can be spent at most
// once even under concurrent verification attempts, and a regenerated
// batch either fully replaces the old one or leaves it intact.
package vault
