package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
)

// ServiceFunc is the shape of an operation that Protect can wrap.
type ServiceFunc func(ctx context.Context, sess *session.Session, req any) (any, error)

// CheckPermission reports whether the session's role may perform action
// on resource. Pure and silent: no audit event, no side effects, and
// false for every unmodeled case — nil or expired session, unknown
// role, unknown resource, unlisted action.
func (e *Engine) CheckPermission(sess *session.Session, resource permission.Resource, action permission.Action) bool {
	if e == nil || e.matrix == nil || sess == nil {
		return false
	}
	if sess.Expired(time.Now()) {
		return false
	}
	return e.matrix.Allows(permission.Role(sess.Role), resource, action)
}

// AssertPermission is CheckPermission plus enforcement: on denial it
// returns a [*PermissionError] and records a permission_denied audit
// event. The audit write is fire-and-forget; it never blocks or fails
// this call.
func (e *Engine) AssertPermission(ctx context.Context, sess *session.Session, resource permission.Resource, action permission.Action) error {
	if e.CheckPermission(sess, resource, action) {
		return nil
	}

	denial := &PermissionError{
		Resource: resource,
		Action:   action,
	}
	if sess != nil {
		denial.IdentityID = sess.IdentityID
		denial.Role = permission.Role(sess.Role)
	}

	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditEventPermissionDenied, false, denial.IdentityID, "", sessionID(sess), denial, func() map[string]string {
		return map[string]string{
			"role":     string(denial.Role),
			"resource": string(resource),
			"action":   action.String(),
		}
	})

	return denial
}

// UserPermissions returns exactly the matrix entry for the session's
// role and the resource, or nil when absent. A nil or expired session
// has no permissions.
func (e *Engine) UserPermissions(sess *session.Session, resource permission.Resource) []permission.Action {
	if e == nil || e.matrix == nil || sess == nil || sess.Expired(time.Now()) {
		return nil
	}
	return e.matrix.Permitted(permission.Role(sess.Role), resource)
}

// RequireRole reports whether the session's role is one of roles. Pure
// role-set membership, independent of the permission matrix.
func (e *Engine) RequireRole(sess *session.Session, roles ...permission.Role) bool {
	if sess == nil || sess.Expired(time.Now()) {
		return false
	}
	for _, role := range roles {
		if permission.Role(sess.Role) == role {
			return true
		}
	}
	return false
}

// AssertRole returns ErrRoleRequired when the session's role is not in
// roles.
func (e *Engine) AssertRole(sess *session.Session, roles ...permission.Role) error {
	if e.RequireRole(sess, roles...) {
		return nil
	}
	e.metricInc(MetricRoleDenied)
	return fmt.Errorf("%w: need one of %v", ErrRoleRequired, roles)
}

// Protect wraps fn with AssertPermission so enforcement happens once at
// the service boundary and never inside fn. On denial the configured
// DeniedNotifier fires before the error is returned.
func (e *Engine) Protect(resource permission.Resource, action permission.Action, fn ServiceFunc) ServiceFunc {
	return func(ctx context.Context, sess *session.Session, req any) (any, error) {
		if err := e.AssertPermission(ctx, sess, resource, action); err != nil {
			var denial *PermissionError
			if e.notifier != nil && errors.As(err, &denial) {
				e.notifier(denial)
			}
			return nil, err
		}
		return fn(ctx, sess, req)
	}
}

// ProtectService wraps every operation of svc with Protect. The action
// map must name every method exactly once; an unmapped method is a
// wiring error reported at wrap time, not an implicit grant or deny at
// call time. [DefaultActionMap] produces the conventional verb mapping
// for callers that want it.
func (e *Engine) ProtectService(
	resource permission.Resource,
	svc map[string]ServiceFunc,
	actions map[string]permission.Action,
) (map[string]ServiceFunc, error) {
	wrapped := make(map[string]ServiceFunc, len(svc))
	for name, fn := range svc {
		action, ok := actions[name]
		if !ok {
			return nil, fmt.Errorf("no action mapped for service method %q on %s", name, resource)
		}
		if !action.Valid() {
			return nil, fmt.Errorf("invalid action mapped for service method %q on %s", name, resource)
		}
		wrapped[name] = e.Protect(resource, action, fn)
	}
	return wrapped, nil
}

// DefaultActionMap derives actions from conventional method names:
// create/insert/add map to Create, get/list/find prefixes to Read,
// update/set to Update, delete/remove to Delete. Unrecognized names
// yield an error rather than a guess.
func DefaultActionMap(methods ...string) (map[string]permission.Action, error) {
	out := make(map[string]permission.Action, len(methods))
	for _, name := range methods {
		action, err := defaultActionForMethod(name)
		if err != nil {
			return nil, err
		}
		out[name] = action
	}
	return out, nil
}

func defaultActionForMethod(name string) (permission.Action, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "create"), strings.HasPrefix(lower, "insert"), strings.HasPrefix(lower, "add"):
		return permission.ActionCreate, nil
	case strings.HasPrefix(lower, "get"), strings.HasPrefix(lower, "list"), strings.HasPrefix(lower, "find"):
		return permission.ActionRead, nil
	case strings.HasPrefix(lower, "update"), strings.HasPrefix(lower, "set"):
		return permission.ActionUpdate, nil
	case strings.HasPrefix(lower, "delete"), strings.HasPrefix(lower, "remove"):
		return permission.ActionDelete, nil
	default:
		return 0, fmt.Errorf("no default action for method %q; map it explicitly", name)
	}
}

// ShowIfAllowed is the boolean behind a "render this control" decision.
func (e *Engine) ShowIfAllowed(sess *session.Session, resource permission.Resource, action permission.Action) bool {
	return e.CheckPermission(sess, resource, action)
}

// DisableIfNotAllowed reports whether a control should be disabled.
func (e *Engine) DisableIfNotAllowed(sess *session.Session, resource permission.Resource, action permission.Action) bool {
	return !e.CheckPermission(sess, resource, action)
}

// ShowIfRole is the boolean behind a role-gated control.
func (e *Engine) ShowIfRole(sess *session.Session, roles ...permission.Role) bool {
	return e.RequireRole(sess, roles...)
}

func sessionID(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.ID
}
