package model

// ErrorCode classifies a failed sync for display and caller branching.
type ErrorCode string

const (
	ErrCodeAuth             ErrorCode = "auth_error"
	ErrCodeScope            ErrorCode = "scope_error"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeConflict         ErrorCode = "conflict"
	ErrCodeValidation       ErrorCode = "validation_error"
	ErrCodeRateLimit        ErrorCode = "rate_limited"
	ErrCodeServer           ErrorCode = "server_error"
	ErrCodeUnknown          ErrorCode = "unknown_error"
	ErrCodeNoFieldsToUpdate ErrorCode = "no_fields_to_update"
	ErrCodeInvalidTarget    ErrorCode = "invalid_target"
)

// SyncTarget tells the orchestrator whether to create a new deal or update
// an existing one.
type SyncTarget struct {
	DealID    string `json:"deal_id,omitempty"`
	IsNewDeal bool   `json:"is_new_deal"`
}

// UpdatesExisting reports whether the target points at an existing deal.
func (t SyncTarget) UpdatesExisting() bool {
	return t.DealID != "" && !t.IsNewDeal
}

// SyncResult is the terminal outcome of one orchestration run.
type SyncResult struct {
	Success      bool      `json:"success"`
	CompanyID    string    `json:"company_id,omitempty"`
	ContactID    string    `json:"contact_id,omitempty"`
	DealID       string    `json:"deal_id,omitempty"`
	DealCreated  bool      `json:"deal_created"`
	TasksCreated int       `json:"tasks_created"`
	TasksUpdated int       `json:"tasks_updated"`
	TasksDeleted int       `json:"tasks_deleted"`
	ErrorCode    ErrorCode `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
