package model

import (
	"encoding/json"
	"time"
)

// AuditAction names the logical CRM mutation an audit record describes.
type AuditAction string

const (
	ActionCreateCompany AuditAction = "create-company"
	ActionCreateContact AuditAction = "create-contact"
	ActionCreateDeal    AuditAction = "create-deal"
	ActionUpdateDeal    AuditAction = "update-deal"
	ActionAssociateDeal AuditAction = "associate-deal"
	ActionCreateTask    AuditAction = "create-task"
	ActionUpdateTask    AuditAction = "update-task"
	ActionDeleteTask    AuditAction = "delete-task"
	ActionDeleteCompany AuditAction = "delete-company"
	ActionDeleteContact AuditAction = "delete-contact"
)

// IsDealStep reports whether the action is the critical deal write.
func (a AuditAction) IsDealStep() bool {
	return a == ActionCreateDeal || a == ActionUpdateDeal
}

// AuditStatus is the lifecycle state of one mutation attempt.
type AuditStatus string

const (
	AuditStatusPending  AuditStatus = "pending"
	AuditStatusSuccess  AuditStatus = "success"
	AuditStatusFailed   AuditStatus = "failed"
	AuditStatusRetrying AuditStatus = "retrying"
)

// Terminal reports whether no further transitions are expected.
func (s AuditStatus) Terminal() bool {
	return s == AuditStatusSuccess || s == AuditStatusFailed
}

// AuditRecord is one append-only ledger entry per external mutation attempt.
type AuditRecord struct {
	ID           string          `json:"id"`
	ApprovalID   string          `json:"approval_id"`
	ConnectionID string          `json:"connection_id"`
	Action       AuditAction     `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       AuditStatus     `json:"status"`
	Error        string          `json:"error,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AuditUpdate describes a status transition for an existing audit record.
type AuditUpdate struct {
	Status     AuditStatus
	ResourceID string
	Error      string
	RetryCount int
}
