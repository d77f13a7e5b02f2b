package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to dispatcher backpressure.
const AuditDroppedName = "goidentity_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful password logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Rejected password logins."},
	{ID: goIdentity.MetricLoginSecondFactorRequired, Name: "goidentity_login_second_factor_required_total", Help: "Logins that returned a partial session."},
	{ID: goIdentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Password registrations."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Single-session logouts."},
	{ID: goIdentity.MetricLogoutAll, Name: "goidentity_logout_all_total", Help: "Logout-all operations."},
	{ID: goIdentity.MetricEmailVerificationRequest, Name: "goidentity_email_verification_request_total", Help: "Verification mails requested."},
	{ID: goIdentity.MetricEmailVerificationSuccess, Name: "goidentity_email_verification_success_total", Help: "Successful email verifications."},
	{ID: goIdentity.MetricEmailVerificationFailure, Name: "goidentity_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset requests."},
	{ID: goIdentity.MetricPasswordResetConfirmSuccess, Name: "goidentity_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: goIdentity.MetricPasswordResetConfirmFailure, Name: "goidentity_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: goIdentity.MetricEmailChangeRequest, Name: "goidentity_email_change_request_total", Help: "Email change requests."},
	{ID: goIdentity.MetricEmailChangeConfirmSuccess, Name: "goidentity_email_change_confirm_success_total", Help: "Successful email change confirmations."},
	{ID: goIdentity.MetricEmailChangeConfirmFailure, Name: "goidentity_email_change_confirm_failure_total", Help: "Failed email change confirmations."},
	{ID: goIdentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Successful password changes."},
	{ID: goIdentity.MetricPasswordChangeInvalidOld, Name: "goidentity_password_change_invalid_old_total", Help: "Password changes rejected for a wrong old password."},
	{ID: goIdentity.MetricAccountDeleted, Name: "goidentity_account_deleted_total", Help: "Deleted accounts."},
	{ID: goIdentity.MetricSSOAuthURLIssued, Name: "goidentity_sso_auth_url_issued_total", Help: "SSO correlation entries reserved."},
	{ID: goIdentity.MetricSSOExchangeSuccess, Name: "goidentity_sso_exchange_success_total", Help: "Provider exchanges that filled a correlation entry."},
	{ID: goIdentity.MetricSSOExchangeFailure, Name: "goidentity_sso_exchange_failure_total", Help: "Failed provider exchanges."},
	{ID: goIdentity.MetricSSOProviderMismatch, Name: "goidentity_sso_provider_mismatch_total", Help: "States presented with the wrong provider."},
	{ID: goIdentity.MetricSSOLoginSuccess, Name: "goidentity_sso_login_success_total", Help: "SSO logins of existing users."},
	{ID: goIdentity.MetricSSOSignup, Name: "goidentity_sso_signup_total", Help: "Accounts registered through SSO."},
	{ID: goIdentity.MetricSSOConsumeFailure, Name: "goidentity_sso_consume_failure_total", Help: "Correlation entries that could not be consumed."},
	{ID: goIdentity.MetricSSOCorruptedSession, Name: "goidentity_sso_corrupted_session_total", Help: "Correlation entries with an unreadable payload."},
	{ID: goIdentity.MetricAccountLinked, Name: "goidentity_account_linked_total", Help: "Provider accounts linked."},
	{ID: goIdentity.MetricAccountUnlinked, Name: "goidentity_account_unlinked_total", Help: "Provider accounts unlinked."},
	{ID: goIdentity.MetricTwoFactorEnabled, Name: "goidentity_two_factor_enabled_total", Help: "Two-factor enrolments."},
	{ID: goIdentity.MetricTwoFactorDisabled, Name: "goidentity_two_factor_disabled_total", Help: "Two-factor removals."},
	{ID: goIdentity.MetricTwoFactorSuccess, Name: "goidentity_two_factor_success_total", Help: "Accepted second factors."},
	{ID: goIdentity.MetricTwoFactorFailure, Name: "goidentity_two_factor_failure_total", Help: "Rejected second factors."},
	{ID: goIdentity.MetricRecoveryCodeUsed, Name: "goidentity_recovery_code_used_total", Help: "Recovery codes spent."},
	{ID: goIdentity.MetricActionTokensPurged, Name: "goidentity_action_tokens_purged_total", Help: "Expired action tokens removed by cleanup."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricVerifyLatency, Name: "goidentity_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine keeps one
// more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names every bucket, +Inf included, for exporters that flatten
// histograms into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
