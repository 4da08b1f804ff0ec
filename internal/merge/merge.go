// Package merge decides how new extraction data lands on an existing deal
// and its tasks.
package merge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/model"
)

// DescriptionSeparator joins successive summaries in a deal description.
const DescriptionSeparator = "\n\n---\n\n"

// PropertyRequest is the input of a property merge.
type PropertyRequest struct {
	Existing      map[string]string
	New           map[string]string
	AllowedFields []string
	Transcript    string
}

// TaskRequest is the input of a task merge.
type TaskRequest struct {
	Existing   []model.Task
	Extraction *model.Extraction
	Transcript string
}

// TaskAdd is a task to create.
type TaskAdd struct {
	Subject string     `json:"subject"`
	Body    string     `json:"body,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// TaskUpdate changes an existing task. Empty fields are left alone.
type TaskUpdate struct {
	ID      string     `json:"id"`
	Subject string     `json:"subject,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// TaskPlan is the outcome of a task merge.
type TaskPlan struct {
	Add    []TaskAdd    `json:"add,omitempty"`
	Update []TaskUpdate `json:"update,omitempty"`
	Delete []string     `json:"delete,omitempty"`

	// Degraded is set when the plan came from the fallback strategy.
	Degraded bool `json:"degraded,omitempty"`
}

// Empty reports whether the plan has no operations.
func (p TaskPlan) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Strategy merges properties and tasks.
type Strategy interface {
	Name() string
	MergeProperties(ctx context.Context, req PropertyRequest) (map[string]string, error)
	MergeTasks(ctx context.Context, req TaskRequest) (TaskPlan, error)
}

// Fallback tries a primary strategy and falls back to a secondary one on
// any error. Primary errors are logged, never returned.
type Fallback struct {
	primary   Strategy
	secondary Strategy
}

// WithFallback wraps primary so that secondary answers when it fails.
func WithFallback(primary, secondary Strategy) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) MergeProperties(ctx context.Context, req PropertyRequest) (map[string]string, error) {
	out, err := f.primary.MergeProperties(ctx, req)
	if err == nil {
		return out, nil
	}
	zap.L().Warn("merge: property merge failed, using fallback",
		zap.String("strategy", f.primary.Name()),
		zap.Error(err),
	)
	return f.secondary.MergeProperties(ctx, req)
}

func (f *Fallback) MergeTasks(ctx context.Context, req TaskRequest) (TaskPlan, error) {
	plan, err := f.primary.MergeTasks(ctx, req)
	if err == nil {
		return plan, nil
	}
	zap.L().Warn("merge: task merge failed, using fallback",
		zap.String("strategy", f.primary.Name()),
		zap.Error(err),
	)
	plan, err = f.secondary.MergeTasks(ctx, req)
	plan.Degraded = true
	return plan, err
}
