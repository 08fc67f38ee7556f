package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/crowdstack/authcore"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
	AuditLogFailures() uint64
}

type counterDef struct {
	id   authcore.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authcore.MetricPermissionDenied, "authcore_permission_denied_total", "Authorization checks denied by the permission matrix."},
	{authcore.MetricRoleDenied, "authcore_role_denied_total", "Role gate checks that rejected the session role."},
	{authcore.MetricEnrollmentStarted, "authcore_enrollment_started_total", "MFA enrollments started."},
	{authcore.MetricEnrollmentCompleted, "authcore_enrollment_completed_total", "MFA enrollments verified and activated."},
	{authcore.MetricEnrollmentFailed, "authcore_enrollment_failed_total", "MFA enrollment verification failures."},
	{authcore.MetricUnenrolled, "authcore_unenrolled_total", "MFA factors unenrolled."},
	{authcore.MetricChallengeCreated, "authcore_challenge_created_total", "MFA challenges created."},
	{authcore.MetricChallengeSuccess, "authcore_challenge_success_total", "MFA challenges verified successfully."},
	{authcore.MetricChallengeFailure, "authcore_challenge_failure_total", "MFA challenge verification failures."},
	{authcore.MetricBackupCodeUsed, "authcore_backup_code_used_total", "Backup codes consumed successfully."},
	{authcore.MetricBackupCodeFailed, "authcore_backup_code_failed_total", "Backup code verification failures."},
	{authcore.MetricBackupCodesRegenerated, "authcore_backup_codes_regenerated_total", "Backup code batches regenerated."},
	{authcore.MetricSessionStarted, "authcore_session_started_total", "Sessions started."},
	{authcore.MetricSessionExpired, "authcore_session_expired_total", "Operations rejected on an expired session."},
	{authcore.MetricSessionEnded, "authcore_session_ended_total", "Sessions ended by the user."},
	{authcore.MetricAuditLogWriteFailed, "authcore_audit_log_write_failed_total", "Audit log persistence failures (events were dropped silently)."},
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter that reads from the given [authcore.Engine].
func NewExporter(engine *authcore.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an exporter from a custom metrics source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the current metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}

	writeCounter(&b, "authcore_audit_dropped_total", "Audit events dropped due to dispatcher backpressure.", e.source.AuditDropped())
	writeCounter(&b, "authcore_audit_store_failures_total", "Audit store write failures observed by the persistence layer.", e.source.AuditLogFailures())

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
