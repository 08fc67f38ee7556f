// Package authcore is the security core of an operations-management
// client: a role-based authorization engine and the orchestration layer
// for multi-factor authentication enrollment, login step-up challenges,
// one-time backup codes, and a security audit trail.
//
// The package is designed for concurrent use: Engine methods are safe to
// call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], the [IdentityProvider] contract, and value types. Store
// coordination — the backup code vault, the persistent audit log —
// lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Implement TOTP (RFC 6238) itself. Secret generation, challenge
//     issuance, and code verification are delegated to the configured
//     [IdentityProvider]; the localidp sub-package ships a compliant
//     in-process provider for development and tests.
//   - Let an audit write block or fail the security operation being
//     audited. Audit dispatch is asynchronous and best-effort; failures
//     are counted and surfaced to a diagnostic callback only.
//   - Grant anything by default. Every (role, resource, action)
//     combination absent from the permission matrix is denied.
package authcore
