package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/resilience"
	"github.com/sells-group/dealsync/pkg/anthropic"
)

type scriptedClient struct {
	replies []string
	err     error
	reqs    []anthropic.MessageRequest
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return nil, c.err
	}
	text := ""
	if len(c.replies) > 0 {
		text, c.replies = c.replies[0], c.replies[1:]
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}, nil
}

func TestDeterministic_DescriptionAppend(t *testing.T) {
	out, err := Deterministic{}.MergeProperties(context.Background(), PropertyRequest{
		Existing:      map[string]string{"description": "Intro call"},
		New:           map[string]string{"description": "Discussed pricing"},
		AllowedFields: []string{"description"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro call\n\n---\n\nDiscussed pricing", out["description"])
}

func TestDeterministic_Rules(t *testing.T) {
	out, err := Deterministic{}.MergeProperties(context.Background(), PropertyRequest{
		Existing: map[string]string{"dealname": "Old name", "amount": "100", "closedate": "1740787200000", "notes": "keep"},
		New:      map[string]string{"dealname": "New name", "amount": "5000", "closedate": ""},
		AllowedFields: []string{"dealname", "amount", "closedate", "notes", "description"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"amount":    "5000",
		"closedate": "1740787200000",
		"notes":     "keep",
	}, out)
}

func TestDeterministic_AllFieldsWhenNoAllowList(t *testing.T) {
	out, _ := Deterministic{}.MergeProperties(context.Background(), PropertyRequest{
		New: map[string]string{"amount": "1", "dealname": "x"},
	})
	assert.Equal(t, map[string]string{"amount": "1"}, out)
}

func TestAppendDescription(t *testing.T) {
	assert.Equal(t, "new", AppendDescription("", "new"))
	assert.Equal(t, "old", AppendDescription("old", "  "))
	assert.Equal(t, "Intro call\n\n---\n\nDiscussed pricing", AppendDescription("Intro call\n\n---\n\nDiscussed pricing", "Discussed pricing"))
}

func TestDeterministic_TasksDegraded(t *testing.T) {
	plan, err := Deterministic{}.MergeTasks(context.Background(), TaskRequest{})
	require.NoError(t, err)
	assert.True(t, plan.Degraded)
	assert.True(t, plan.Empty())
}

func TestAssisted_MergeProperties(t *testing.T) {
	c := &scriptedClient{replies: []string{"```json\n" + `{"competitors":"Globex;Initech","dealname":"Hijacked","description":"rewritten","secret":"x","amount":7000}` + "\n```"}}
	a := NewAssisted(c, WithModel("test-model"), WithMaxTokens(256))

	out, err := a.MergeProperties(context.Background(), PropertyRequest{
		Existing:      map[string]string{"competitors": "Globex;Umbrella", "description": "Intro call"},
		New:           map[string]string{"competitors": "Initech", "description": "Discussed pricing", "amount": "5000"},
		AllowedFields: []string{"competitors", "description", "amount", "dealname"},
		Transcript:    "We are no longer looking at Umbrella.",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"competitors": "Globex;Initech",
		"description": "Intro call\n\n---\n\nDiscussed pricing",
		"amount":      "7000",
	}, out)

	require.Len(t, c.reqs, 1)
	assert.Equal(t, "test-model", c.reqs[0].Model)
	assert.Equal(t, int64(256), c.reqs[0].MaxTokens)
	assert.Contains(t, c.reqs[0].Messages[0].Content, "no longer looking at Umbrella")
}

func TestAssisted_NonObjectReplyFails(t *testing.T) {
	for _, reply := range []string{
		"I cannot help with that.",
		`[{"amount":"1"}]`,
		"```json\n[{\"amount\":\"1\"}]\n```",
	} {
		a := NewAssisted(&scriptedClient{replies: []string{reply}})
		_, err := a.MergeProperties(context.Background(), PropertyRequest{New: map[string]string{"amount": "1"}})
		assert.Error(t, err, reply)
	}
}

func TestAssisted_TranscriptTruncated(t *testing.T) {
	c := &scriptedClient{replies: []string{"{}"}}
	a := NewAssisted(c, WithTranscriptLimit(5))
	_, err := a.MergeProperties(context.Background(), PropertyRequest{Transcript: "ñandú and more"})
	require.NoError(t, err)
	assert.Contains(t, c.reqs[0].Messages[0].Content, "Transcript:\nñandú")
	assert.NotContains(t, c.reqs[0].Messages[0].Content, "more")
}

func due(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestAssisted_MergeTasks(t *testing.T) {
	c := &scriptedClient{replies: []string{`{
		"add": [{"subject": "Send contract", "due_date": "2025-03-12"}, {"subject": "  "}],
		"update": [{"id": "t1", "due_date": "2025-03-20T10:00:00Z"}, {"id": "ghost", "due_date": "2025-03-20"}, {"id": "t2", "due_date": "next week"}],
		"delete": [{"id": "t3"}, {"id": "t3"}, {"id": "nope"}]
	}`}}
	a := NewAssisted(c)

	plan, err := a.MergeTasks(context.Background(), TaskRequest{
		Existing: []model.Task{
			{ID: "t1", Subject: "Demo", DueDate: due("2025-03-05")},
			{ID: "t2", Subject: "Call CFO"},
			{ID: "t3", Subject: "Site visit"},
		},
		Extraction: &model.Extraction{NextSteps: []string{"Demo moved to 2025-03-20", "Send contract", "Site visit cancelled"}},
	})
	require.NoError(t, err)
	assert.False(t, plan.Degraded)

	require.Len(t, plan.Add, 1)
	assert.Equal(t, "Send contract", plan.Add[0].Subject)
	assert.Equal(t, due("2025-03-12"), plan.Add[0].DueDate)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, "t1", plan.Update[0].ID)
	assert.Equal(t, due("2025-03-20"), plan.Update[0].DueDate)

	assert.Equal(t, []string{"t3"}, plan.Delete)
	assert.Contains(t, c.reqs[0].Messages[0].Content, `"due_date":"2025-03-05"`)
}

func TestAssisted_MergeTasksNoExisting(t *testing.T) {
	c := &scriptedClient{}
	plan, err := NewAssisted(c).MergeTasks(context.Background(), TaskRequest{Extraction: &model.Extraction{NextSteps: []string{"x"}}})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Empty(t, c.reqs)
}

func TestFallback(t *testing.T) {
	c := &scriptedClient{err: errors.New("overloaded")}
	f := WithFallback(NewAssisted(c), Deterministic{})
	assert.Equal(t, "assisted+deterministic", f.Name())

	out, err := f.MergeProperties(context.Background(), PropertyRequest{
		Existing:      map[string]string{"description": "Intro call"},
		New:           map[string]string{"description": "Discussed pricing"},
		AllowedFields: []string{"description"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro call\n\n---\n\nDiscussed pricing", out["description"])

	plan, err := f.MergeTasks(context.Background(), TaskRequest{
		Existing:   []model.Task{{ID: "t1", Subject: "Demo"}},
		Extraction: &model.Extraction{NextSteps: []string{"Demo"}},
	})
	require.NoError(t, err)
	assert.True(t, plan.Degraded)
	assert.True(t, plan.Empty())
}

func TestAssisted_BreakerOpensAfterFailures(t *testing.T) {
	c := &scriptedClient{err: errors.New("overloaded")}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	a := NewAssisted(c, WithBreaker(cb))
	req := PropertyRequest{New: map[string]string{"amount": "1"}}

	for i := 0; i < 2; i++ {
		_, err := a.MergeProperties(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	_, err := a.MergeProperties(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Len(t, c.reqs, 2, "open circuit skips the provider")
}
