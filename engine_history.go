package authcore

import (
	"context"
	"fmt"

	"github.com/crowdstack/authcore/permission"
	"github.com/crowdstack/authcore/session"
)

// SecurityHistory returns the most recent security events for an
// identity, newest first, for the user-facing security-history view.
//
// A session may always read its own history; reading another identity's
// history requires Read on the security resource.
func (e *Engine) SecurityHistory(ctx context.Context, sess *session.Session, identityID string, limit int) ([]AuditEvent, error) {
	if e == nil || e.auditLog == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.requireLiveSession(sess); err != nil {
		return nil, err
	}
	if identityID == "" {
		identityID = sess.IdentityID
	}
	if identityID != sess.IdentityID {
		if err := e.AssertPermission(ctx, sess, permission.ResourceSecurity, permission.ActionRead); err != nil {
			return nil, err
		}
	}

	entries, err := e.auditLog.Recent(ctx, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditLogUnavailable, err)
	}

	events := make([]AuditEvent, 0, len(entries))
	for _, entry := range entries {
		events = append(events, AuditEvent{
			ID:         entry.ID,
			Timestamp:  entry.Timestamp,
			EventType:  entry.EventType,
			Severity:   severityForEvent(entry.EventType, entry.Success),
			Success:    entry.Success,
			IdentityID: entry.IdentityID,
			FactorID:   entry.FactorID,
			Error:      entry.Error,
			Metadata:   entry.Metadata,
		})
	}
	return events, nil
}
