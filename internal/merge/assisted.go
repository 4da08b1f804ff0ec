package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealsync/internal/mapper"
	"github.com/sells-group/dealsync/internal/resilience"
	"github.com/sells-group/dealsync/pkg/anthropic"
)

// AssistedOption configures an Assisted strategy.
type AssistedOption func(*Assisted)

// WithModel sets the model id.
func WithModel(model string) AssistedOption {
	return func(a *Assisted) {
		if model != "" {
			a.model = model
		}
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int64) AssistedOption {
	return func(a *Assisted) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTranscriptLimit truncates transcript snippets to n characters.
func WithTranscriptLimit(n int) AssistedOption {
	return func(a *Assisted) {
		if n > 0 {
			a.transcriptMax = n
		}
	}
}

// WithBreaker guards provider calls with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) AssistedOption {
	return func(a *Assisted) { a.breaker = cb }
}

// Assisted asks a language model to merge list-like fields and to relate
// next steps to existing tasks. Each call is a single attempt.
type Assisted struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	transcriptMax int
	breaker       *resilience.CircuitBreaker
}

// NewAssisted creates an Assisted strategy. Without WithBreaker a default
// breaker is used.
func NewAssisted(client anthropic.Client, opts ...AssistedOption) *Assisted {
	a := &Assisted{
		client:        client,
		model:         anthropic.DefaultModel,
		maxTokens:     1024,
		transcriptMax: 4000,
	}
	for _, o := range opts {
		o(a)
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 3})
	}
	return a
}

func (a *Assisted) Name() string { return "assisted" }

func (a *Assisted) MergeProperties(ctx context.Context, req PropertyRequest) (map[string]string, error) {
	fields := allowedFields(req)
	in := map[string]any{
		"allowed_fields": fields,
		"existing":       pick(req.Existing, fields),
		"new":            pick(req.New, fields),
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "merge: marshal property input")
	}

	var raw map[string]any
	if err := a.ask(ctx, "merge_properties", propertySystemPrompt,
		fmt.Sprintf("%s\n\nTranscript:\n%s", payload, a.snippet(req.Transcript)), &raw); err != nil {
		return nil, err
	}

	out := mergeDeterministic(req)
	for k, v := range raw {
		if k == fieldDealName || k == fieldDescription || !slices.Contains(fields, k) {
			continue
		}
		s, ok := scalar(v)
		if !ok {
			continue
		}
		if s == "" {
			delete(out, k)
			continue
		}
		out[k] = s
	}
	return out, nil
}

type taskReply struct {
	Add []struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
		DueDate string `json:"due_date"`
	} `json:"add"`
	Update []struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
		DueDate string `json:"due_date"`
	} `json:"update"`
	Delete []struct {
		ID string `json:"id"`
	} `json:"delete"`
}

type promptTask struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	DueDate string `json:"due_date,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (a *Assisted) MergeTasks(ctx context.Context, req TaskRequest) (TaskPlan, error) {
	if len(req.Existing) == 0 || req.Extraction == nil {
		return TaskPlan{}, nil
	}

	known := make(map[string]bool, len(req.Existing))
	existing := make([]promptTask, 0, len(req.Existing))
	for _, t := range req.Existing {
		known[t.ID] = true
		pt := promptTask{ID: t.ID, Subject: t.Subject, Status: t.Status}
		if t.DueDate != nil {
			pt.DueDate = t.DueDate.Format("2006-01-02")
		}
		existing = append(existing, pt)
	}
	payload, err := json.Marshal(map[string]any{
		"existing_tasks": existing,
		"next_steps":     req.Extraction.NextSteps,
	})
	if err != nil {
		return TaskPlan{}, eris.Wrap(err, "merge: marshal task input")
	}

	var reply taskReply
	if err := a.ask(ctx, "merge_tasks", taskSystemPrompt,
		fmt.Sprintf("%s\n\nTranscript:\n%s", payload, a.snippet(req.Transcript)), &reply); err != nil {
		return TaskPlan{}, err
	}

	var plan TaskPlan
	deleted := make(map[string]bool)
	for _, d := range reply.Delete {
		if known[d.ID] && !deleted[d.ID] {
			deleted[d.ID] = true
			plan.Delete = append(plan.Delete, d.ID)
		}
	}
	for _, u := range reply.Update {
		if !known[u.ID] || deleted[u.ID] {
			continue
		}
		upd := TaskUpdate{ID: u.ID, Subject: strings.TrimSpace(u.Subject), DueDate: datePtr(u.DueDate)}
		if upd.Subject == "" && upd.DueDate == nil {
			continue
		}
		plan.Update = append(plan.Update, upd)
	}
	for _, ad := range reply.Add {
		subject := strings.TrimSpace(ad.Subject)
		if subject == "" {
			continue
		}
		plan.Add = append(plan.Add, TaskAdd{Subject: subject, Body: strings.TrimSpace(ad.Body), DueDate: datePtr(ad.DueDate)})
	}
	return plan, nil
}

// ask sends one prompt through the breaker and decodes a JSON object reply.
func (a *Assisted) ask(ctx context.Context, phase, system, user string, out any) error {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System:    anthropic.BuildCachedSystemBlocks(system),
			Messages:  []anthropic.Message{{Role: "user", Content: user}},
		})
	})
	if err != nil {
		return eris.Wrapf(err, "merge: %s", phase)
	}
	resp.Usage.LogCost(a.model, phase)

	if err := anthropic.DecodeJSONObject(resp.Text(), out); err != nil {
		return eris.Wrapf(err, "merge: %s reply", phase)
	}
	return nil
}

func (a *Assisted) snippet(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "(none)"
	}
	r := []rune(transcript)
	if len(r) > a.transcriptMax {
		return string(r[:a.transcriptMax])
	}
	return transcript
}

func pick(m map[string]string, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ";"), true
	default:
		return "", false
	}
}

func datePtr(s string) *time.Time {
	t, ok := mapper.ParseDatePrefix(s)
	if !ok {
		return nil
	}
	return &t
}
