package model

import "time"

// Task is a CRM follow-up task attached to a deal.
type Task struct {
	ID      string     `json:"id"`
	Subject string     `json:"subject"`
	Body    string     `json:"body,omitempty"`
	Status  string     `json:"status,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}
