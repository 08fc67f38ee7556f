// Package permission implements the static role/resource/action matrix
// used by the authcore authorization engine.
//
// A [Matrix] is built once at startup, frozen, and then shared read-only
// across all concurrent permission checks. Every (role, resource, action)
// combination that is not explicitly present in the matrix is denied;
// there is no fallthrough and no implicit admin role.
package permission
