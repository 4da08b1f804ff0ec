package model

import "time"

// DealMatchCandidate is an existing CRM deal that plausibly represents the
// same opportunity as an extraction.
type DealMatchCandidate struct {
	DealID       string     `json:"deal_id"`
	DealName     string     `json:"deal_name"`
	CompanyName  string     `json:"company_name,omitempty"`
	ContactName  string     `json:"contact_name,omitempty"`
	Amount       string     `json:"amount,omitempty"`
	Stage        string     `json:"stage,omitempty"`
	Pipeline     string     `json:"pipeline,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Confidence   float64    `json:"confidence"`
	Reason       string     `json:"reason"`
	Strategy     string     `json:"strategy"`
}
