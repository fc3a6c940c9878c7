package models

import "time"

// Activity actions recorded in the audit trail.
const (
	ActivityLogin         = "login"
	ActivityLogout        = "logout"
	ActivityLoginFailed   = "login_failed"
	ActivityClientCreate  = "client_create"
	ActivityClientUpdate  = "client_update"
	ActivityClientDelete  = "client_delete"
	ActivityPolicyCreate  = "policy_create"
	ActivityPolicyUpdate  = "policy_update"
	ActivityPolicyDelete  = "policy_delete"
	ActivityClaimFile     = "claim_file"
	ActivityClaimUpdate   = "claim_update"
	ActivityUserCreate    = "user_create"
	ActivityUserUpdate    = "user_update"
	ActivityUserDelete    = "user_delete"
	ActivitySettingUpdate = "setting_update"
	ActivityReportRun     = "report_run"
)

// ActivityLog is an append-only audit trail row. UserID is nil for events
// that cannot be attributed to an authenticated user (e.g. failed logins).
type ActivityLog struct {
	ID        string
	UserID    *string
	Action    string
	Details   string
	IPAddress string
	CreatedAt time.Time
}
