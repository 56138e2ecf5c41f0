package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected because the username or email was taken."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Registrations rejected for invalid input or backend failure."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Login attempts with invalid credentials."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Login attempts rejected because the account was locked."},
	{ID: authcore.MetricLoginInactive, Name: "authcore_login_inactive_total", Help: "Login attempts against deactivated accounts."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts that crossed the failure threshold."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Revoked sessions."},
	{ID: authcore.MetricAuthenticateSuccess, Name: "authcore_authenticate_success_total", Help: "Accepted bearer tokens."},
	{ID: authcore.MetricAuthenticateExpired, Name: "authcore_authenticate_expired_total", Help: "Bearer tokens rejected as expired."},
	{ID: authcore.MetricAuthenticateInvalid, Name: "authcore_authenticate_invalid_total", Help: "Bearer tokens rejected as invalid."},
	{ID: authcore.MetricAuthenticateSessionNotFound, Name: "authcore_authenticate_session_not_found_total", Help: "Bearer tokens whose session was revoked or expired."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: authcore.MetricPasswordHashUpgraded, Name: "authcore_password_hash_upgraded_total", Help: "Password digests rehashed with current parameters at login."},
	{ID: authcore.MetricAccountDisabled, Name: "authcore_account_disabled_total", Help: "Account deactivations."},
	{ID: authcore.MetricAccountUnlocked, Name: "authcore_account_unlocked_total", Help: "Administrative unlocks."},
	{ID: authcore.MetricStoreRetry, Name: "authcore_store_retry_total", Help: "Backend calls retried after a transient failure."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
	{ID: authcore.MetricAuthenticateLatency, Name: "authcore_authenticate_latency_seconds", Help: "Bearer token authentication latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the engine's
// millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
