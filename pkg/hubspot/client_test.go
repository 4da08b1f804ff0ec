package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealsync/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRetry(fastRetry())}, opts...)
	return NewStaticClient("pat-test", opts...)
}

func TestGetObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crm/v3/objects/deals/42", r.URL.Path)
		assert.Equal(t, "dealname,amount", r.URL.Query().Get("properties"))
		assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"42","properties":{"dealname":"Acme Deal","amount":null},"archived":false}`)
	})

	obj, err := c.GetObject(context.Background(), ObjectDeals, "42", []string{"dealname", "amount"})
	require.NoError(t, err)
	assert.Equal(t, "42", obj.ID)
	assert.Equal(t, "Acme Deal", obj.Get("dealname"))
	_, hasAmount := obj.Properties["amount"]
	assert.False(t, hasAmount, "null properties are dropped")
}

func TestGetObject_RequiresID(t *testing.T) {
	c := NewStaticClient("x")
	_, err := c.GetObject(context.Background(), ObjectDeals, "", nil)
	assert.Error(t, err)
}

func TestCreateObject_SendsAssociations(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/deals", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"900","properties":{"dealname":"Acme Deal"}}`)
	})

	obj, err := c.CreateObject(context.Background(), ObjectDeals, CreateInput{
		Properties:   map[string]string{"dealname": "Acme Deal"},
		Associations: []Association{NewAssociation("77", AssocDealToCompany)},
	})
	require.NoError(t, err)
	assert.Equal(t, "900", obj.ID)

	assocs := got["associations"].([]any)
	require.Len(t, assocs, 1)
	a := assocs[0].(map[string]any)
	assert.Equal(t, "77", a["to"].(map[string]any)["id"])
	types := a["types"].([]any)[0].(map[string]any)
	assert.Equal(t, "HUBSPOT_DEFINED", types["associationCategory"])
	assert.EqualValues(t, AssocDealToCompany, types["associationTypeId"])
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuth},
		{403, KindScope},
		{404, KindNotFound},
		{409, KindConflict},
		{400, KindValidation},
		{422, KindValidation},
		{418, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"status":"error","message":"nope","correlationId":"abc-123","category":"VALIDATION_ERROR"}`)
			})

			_, err := c.UpdateObject(context.Background(), ObjectDeals, "1", map[string]string{"amount": "1"})
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.Equal(t, int32(1), calls.Load(), "deterministic errors are not retried")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "abc-123", apiErr.CorrelationID)
			assert.Contains(t, err.Error(), "abc-123")
		})
	}
}

func TestErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 499) + strings.Repeat("é", 10)
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	})

	_, err := c.GetObject(context.Background(), ObjectDeals, "1", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.Equal(t, strings.Repeat("a", 499), apiErr.Message)

	assert.Equal(t, "ab", truncateBytes("abé", 3))
	assert.Equal(t, "abé", truncateBytes("abé", 4))
	assert.Equal(t, "", truncateBytes("日本", 2))
}

func TestServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream unavailable")
	})

	_, err := c.GetPipelines(context.Background(), ObjectDeals)
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var hookAttempts []int
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"status":"error","message":"You have reached your ten_secondly_rolling limit.","category":"RATE_LIMITS"}`)
			return
		}
		_, _ = io.WriteString(w, `{"results":[]}`)
	})

	ctx := ContextWithRetryHook(context.Background(), func(attempt int, err error) {
		hookAttempts = append(hookAttempts, attempt)
		assert.Equal(t, KindRateLimit, KindOf(err))
	})
	props, err := c.GetProperties(ctx, ObjectDeals)
	require.NoError(t, err)
	assert.Empty(t, props)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []int{1}, hookAttempts)
}

func TestClientSideRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := NewStaticClient("t",
		WithBaseURL(srv.URL),
		WithRateLimit(1, time.Hour),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)

	_, err := c.GetPipelines(context.Background(), ObjectDeals)
	require.NoError(t, err)

	_, err = c.GetPipelines(context.Background(), ObjectDeals)
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
	hint, ok := resilience.RetryAfter(err)
	assert.True(t, ok)
	assert.Greater(t, hint, 30*time.Minute)
	assert.Equal(t, int32(1), calls.Load(), "rejected call never reaches the server")
}

func TestWindowLimiter_NeverExceedsWindow(t *testing.T) {
	for _, tc := range []struct {
		n      int
		window time.Duration
	}{
		{4, time.Second},
		{100, 10 * time.Second},
		{1, time.Second},
		{7, 500 * time.Millisecond},
	} {
		lim := newWindowLimiter(tc.n, tc.window)
		start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		// Ask for a slot every millisecond for three windows.
		var admitted []time.Time
		for at := start; at.Before(start.Add(3 * tc.window)); at = at.Add(time.Millisecond) {
			if lim.AllowN(at, 1) {
				admitted = append(admitted, at)
			}
		}
		require.NotEmpty(t, admitted)

		worst := 0
		for i, from := range admitted {
			count := 0
			for _, at := range admitted[i:] {
				if at.Sub(from) >= tc.window {
					break
				}
				count++
			}
			worst = max(worst, count)
		}
		assert.LessOrEqual(t, worst, tc.n, "n=%d window=%s", tc.n, tc.window)
		assert.Greater(t, len(admitted), tc.n, "n=%d window=%s refills", tc.n, tc.window)
	}
}

func TestBatchReadObjects_Chunks(t *testing.T) {
	var sizes []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals/batch/read", r.URL.Path)
		var req batchReadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sizes = append(sizes, len(req.Inputs))
		resp := batchReadResponse{Status: "COMPLETE"}
		for _, in := range req.Inputs {
			o := Object{ID: in.ID}
			resp.Results = append(resp.Results, o)
		}
		b, _ := json.Marshal(map[string]any{"status": resp.Status, "results": idsOnly(resp.Results)})
		_, _ = w.Write(b)
	})

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}
	objs, err := c.BatchReadObjects(context.Background(), ObjectDeals, ids, DealProperties)
	require.NoError(t, err)
	assert.Len(t, objs, 250)
	assert.Equal(t, []int{100, 100, 50}, sizes)
}

func idsOnly(objs []Object) []map[string]any {
	out := make([]map[string]any, len(objs))
	for i, o := range objs {
		out[i] = map[string]any{"id": o.ID, "properties": map[string]any{}}
	}
	return out
}

func TestListAssociations_FollowsPaging(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v4/objects/companies/7/associations/deals", r.URL.Path)
		if r.URL.Query().Get("after") == "" {
			_, _ = io.WriteString(w, `{"results":[{"toObjectId":101},{"toObjectId":102}],"paging":{"next":{"after":"2"}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"results":[{"toObjectId":103}]}`)
	})

	ids, err := c.ListAssociations(context.Background(), ObjectCompanies, "7", ObjectDeals)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "103"}, ids)
}

func TestAssociate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/crm/v4/objects/contacts/5/associations/companies/9", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"associationCategory":"HUBSPOT_DEFINED","associationTypeId":1}]`, string(body))
		_, _ = io.WriteString(w, `{}`)
	})

	require.NoError(t, c.Associate(context.Background(), ObjectContacts, "5", ObjectCompanies, "9", AssocContactToCompany))
}

func TestGetProperties_ReadOnlyFromMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/properties/deals", r.URL.Path)
		_, _ = io.WriteString(w, `{"results":[
			{"name":"dealtype","label":"Deal Type","type":"enumeration","fieldType":"select",
			 "options":[{"label":"New Business","value":"newbusiness"}]},
			{"name":"hs_object_id","label":"Record ID","type":"number","fieldType":"number",
			 "modificationMetadata":{"readOnlyValue":true}}
		]}`)
	})

	props, err := c.GetProperties(context.Background(), ObjectDeals)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.False(t, props[0].ReadOnly)
	assert.Equal(t, "newbusiness", props[0].Options[0].Value)
	assert.True(t, props[1].ReadOnly)
}

func TestDeleteObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/crm/v3/objects/companies/3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeleteObject(context.Background(), ObjectCompanies, "3"))
}

func TestExistingID(t *testing.T) {
	err := fmt.Errorf("create: %w", &APIError{Kind: KindConflict, StatusCode: 409, Message: "Contact already exists. Existing ID: 12345"})
	id, ok := ExistingID(err)
	assert.True(t, ok)
	assert.Equal(t, "12345", id)

	_, ok = ExistingID(&APIError{Kind: KindValidation, Message: "Existing ID: 1"})
	assert.False(t, ok)
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, parseRetryAfter(h))

	h = http.Header{}
	h.Set("X-HubSpot-RateLimit-Interval-Milliseconds", "10000")
	assert.Equal(t, 10*time.Second, parseRetryAfter(h))

	assert.Equal(t, time.Second, parseRetryAfter(http.Header{}))
}
