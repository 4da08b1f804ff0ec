package merge

import (
	"context"
	"strings"
)

const (
	fieldDealName    = "dealname"
	fieldDescription = "description"
)

// Deterministic is the rule-based strategy: new values win when present,
// the description is appended to and the deal name never changes.
type Deterministic struct{}

func (Deterministic) Name() string { return "deterministic" }

func (Deterministic) MergeProperties(_ context.Context, req PropertyRequest) (map[string]string, error) {
	return mergeDeterministic(req), nil
}

// MergeTasks has no way to relate phrases to existing tasks, so it returns
// a degraded empty plan.
func (Deterministic) MergeTasks(context.Context, TaskRequest) (TaskPlan, error) {
	return TaskPlan{Degraded: true}, nil
}

func mergeDeterministic(req PropertyRequest) map[string]string {
	out := make(map[string]string)
	for _, field := range allowedFields(req) {
		if field == fieldDealName {
			continue
		}
		existing := req.Existing[field]
		incoming := strings.TrimSpace(req.New[field])
		switch {
		case incoming == "":
			if existing != "" {
				out[field] = existing
			}
		case field == fieldDescription:
			out[field] = AppendDescription(existing, incoming)
		default:
			out[field] = incoming
		}
	}
	return out
}

// AppendDescription appends a new summary to an existing description unless
// it is already there.
func AppendDescription(existing, incoming string) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	switch {
	case incoming == "":
		return existing
	case existing == "":
		return incoming
	case strings.Contains(existing, incoming):
		return existing
	default:
		return existing + DescriptionSeparator + incoming
	}
}

// allowedFields returns the explicit allow list, or every new key.
func allowedFields(req PropertyRequest) []string {
	if len(req.AllowedFields) > 0 {
		return req.AllowedFields
	}
	fields := make([]string, 0, len(req.New))
	for k := range req.New {
		fields = append(fields, k)
	}
	return fields
}
