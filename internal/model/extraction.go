package model

import "strings"

// Confidence holds the upstream extractor's confidence scores.
type Confidence struct {
	Overall float64            `json:"overall"`
	Fields  map[string]float64 `json:"fields,omitempty"`
}

// Extraction is the structured output of the transcript-to-fields step for one
// approval attempt. It is never mutated once produced; re-approval with edits
// produces a new record.
type Extraction struct {
	ID string `json:"id,omitempty"`

	// Deal-level scalars.
	CompanyName string   `json:"company_name,omitempty"`
	DealAmount  *float64 `json:"deal_amount,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	DealStage   string   `json:"deal_stage,omitempty"`
	CloseDate   string   `json:"close_date,omitempty"`

	// Contact scalars.
	ContactName  string `json:"contact_name,omitempty"`
	ContactRole  string `json:"contact_role,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`

	Summary        string   `json:"summary,omitempty"`
	PainPoints     []string `json:"pain_points,omitempty"`
	NextSteps      []string `json:"next_steps,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	Objections     []string `json:"objections,omitempty"`
	DecisionMakers []string `json:"decision_makers,omitempty"`

	Confidence Confidence `json:"confidence"`

	// RawExtraction carries dynamic fields keyed by CRM property name.
	RawExtraction map[string]any `json:"raw_extraction,omitempty"`
}

// HasCompany reports whether a non-blank company name was extracted.
func (e *Extraction) HasCompany() bool {
	return strings.TrimSpace(e.CompanyName) != ""
}

// HasContact reports whether there is enough to find or create a contact.
func (e *Extraction) HasContact() bool {
	return strings.TrimSpace(e.ContactEmail) != "" || strings.TrimSpace(e.ContactName) != ""
}
