package mapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/schema"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

type fakeProvider struct {
	schemas map[string]*schema.Schema
	err     error
}

func (f *fakeProvider) GetSchema(_ context.Context, objectType string, _ bool) (*schema.Schema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.schemas[objectType], nil
}

func dealSchema() *schema.Schema {
	return schema.New(hubspot.ObjectDeals,
		[]hubspot.Property{
			{Name: "dealname", Type: "string", FieldType: "text"},
			{Name: "amount", Type: "number", FieldType: "number"},
			{Name: "closedate", Type: "datetime", FieldType: "date"},
			{Name: "description", Type: "string", FieldType: "textarea"},
			{Name: "industry_notes", Type: "string", FieldType: "text"},
			{Name: "seats", Type: "number", FieldType: "number"},
			{Name: "renewal_date", Type: "date", FieldType: "date"},
			{Name: "is_priority", Type: "bool", FieldType: "booleancheckbox",
				Options: []hubspot.PropertyOption{{Label: "Yes", Value: "true"}, {Label: "No", Value: "false"}}},
			{Name: "products", Type: "enumeration", FieldType: "checkbox",
				Options: []hubspot.PropertyOption{{Label: "Core", Value: "core"}, {Label: "Analytics", Value: "analytics"}}},
			{Name: "hs_deal_stage_probability", Type: "number", Calculated: true},
			{Name: "hs_object_id", Type: "number", ReadOnly: true},
		},
		[]hubspot.Pipeline{
			{ID: "default", Label: "Sales", Stages: []hubspot.Stage{
				{ID: "appointmentscheduled", Label: "Reunión agendada"},
				{ID: "closedwon", Label: "Cierre ganado"},
			}},
			{ID: "renewals", Label: "Renewals", Stages: []hubspot.Stage{
				{ID: "1001", Label: "Renewal Won"},
			}},
		},
	)
}

func amount(v float64) *float64 { return &v }

func TestDealName(t *testing.T) {
	assert.Equal(t, "Acme Deal", DealName(&model.Extraction{CompanyName: " Acme "}))
	assert.Equal(t, "Jane Doe", DealName(&model.Extraction{ContactName: "Jane Doe"}))
	assert.Equal(t, "New Deal", DealName(&model.Extraction{}))
}

func TestMapDealProperties_FixedScalars(t *testing.T) {
	ext := &model.Extraction{
		CompanyName: "Acme",
		DealAmount:  amount(5000),
		Currency:    "MXN",
		CloseDate:   "2025-03-01",
		Summary:     "Discussed pricing",
	}
	props := MapDealProperties(ext, "", nil)

	assert.Equal(t, map[string]string{
		"dealname":    "Acme Deal",
		"amount":      "5000",
		"closedate":   "1740787200000",
		"description": "Discussed pricing",
	}, props)
}

func TestMapDealProperties_InvalidCloseDateDropped(t *testing.T) {
	props := MapDealProperties(&model.Extraction{CloseDate: "next tuesday"}, "Custom", nil)
	assert.NotContains(t, props, "closedate")
	assert.Equal(t, "Custom", props["dealname"])
}

func TestMapDealProperties_FractionalAmount(t *testing.T) {
	props := MapDealProperties(&model.Extraction{DealAmount: amount(1234.5)}, "", nil)
	assert.Equal(t, "1234.5", props["amount"])
}

func TestMapDealProperties_Dynamic(t *testing.T) {
	ext := &model.Extraction{
		CompanyName: "Acme",
		RawExtraction: map[string]any{
			"industry_notes":            "logistics",
			"seats":                     float64(25),
			"renewal_date":              "2026-01-15",
			"is_priority":               true,
			"products":                  []any{"Core", "Analytics"},
			"nested":                    map[string]any{"a": 1},
			"hs_deal_stage_probability": float64(0.4),
			"hs_object_id":              "123",
			"summary":                   "should not leak",
			"pain_points":               []any{"slow"},
			"deal_currency_code":        "USD",
			"dealname":                  "Overridden?",
		},
	}
	props := MapDealProperties(ext, "", dealSchema())

	assert.Equal(t, "logistics", props["industry_notes"])
	assert.Equal(t, "25", props["seats"])
	assert.Equal(t, "1768435200000", props["renewal_date"])
	assert.Equal(t, "true", props["is_priority"])
	assert.Equal(t, "Core;Analytics", props["products"])
	assert.Equal(t, "Acme Deal", props["dealname"])
	for _, k := range []string{"nested", "hs_deal_stage_probability", "hs_object_id", "summary", "pain_points", "deal_currency_code"} {
		assert.NotContains(t, props, k)
	}
}

func TestMapDealProperties_UnknownDynamicKeyPassesThrough(t *testing.T) {
	ext := &model.Extraction{
		CompanyName: "Acme",
		RawExtraction: map[string]any{
			"custom_budget_owner": "Jane",
			"industry_notes":      "x",
			"custom_kickoff_date": "2025-03-01",
		},
	}
	props := MapDealProperties(ext, "", dealSchema())

	assert.Equal(t, "Jane", props["custom_budget_owner"])
	assert.Equal(t, "x", props["industry_notes"])
	assert.Equal(t, "1740787200000", props["custom_kickoff_date"])
}

func TestMapDealProperties_CloseDateFromRaw(t *testing.T) {
	ext := &model.Extraction{RawExtraction: map[string]any{"close_date": "2025-03-01T00:00:00Z"}}
	props := MapDealProperties(ext, "", nil)
	assert.Equal(t, "1740787200000", props["closedate"])
}

func TestClassify(t *testing.T) {
	sc := dealSchema()
	assert.Equal(t, RoleFixedScalar, Classify("amount", sc))
	assert.Equal(t, RoleListMeta, Classify("next_steps", sc))
	assert.Equal(t, RoleReadOnly, Classify("hs_object_id", sc))
	assert.Equal(t, RoleDynamic, Classify("industry_notes", sc))
	assert.Equal(t, RoleDynamic, Classify("industry_notes", nil))
	assert.Equal(t, "read_only", RoleReadOnly.String())
}

func TestMapDeal_ResolvesStageAndPipeline(t *testing.T) {
	m := New(&fakeProvider{schemas: map[string]*schema.Schema{hubspot.ObjectDeals: dealSchema()}})
	props := m.MapDeal(context.Background(), &model.Extraction{CompanyName: "Acme", DealStage: "ganado"}, "")
	assert.Equal(t, "closedwon", props["dealstage"])
	assert.Equal(t, "default", props["pipeline"])

	props = m.MapDeal(context.Background(), &model.Extraction{CompanyName: "Acme", DealStage: "renewal won"}, "")
	assert.Equal(t, "1001", props["dealstage"])
	assert.Equal(t, "renewals", props["pipeline"])
}

func TestMapDeal_UnresolvedStageNeverSent(t *testing.T) {
	m := New(&fakeProvider{schemas: map[string]*schema.Schema{hubspot.ObjectDeals: dealSchema()}})
	props := m.MapDeal(context.Background(), &model.Extraction{CompanyName: "Acme", DealStage: "maybe later"}, "")
	assert.NotContains(t, props, "dealstage")
	assert.NotContains(t, props, "pipeline")
}

func TestMapDeal_SchemaFailureDegrades(t *testing.T) {
	m := New(&fakeProvider{err: errors.New("boom")})
	props := m.MapDeal(context.Background(), &model.Extraction{CompanyName: "Acme", DealStage: "closedwon"}, "")
	assert.Equal(t, "Acme Deal", props["dealname"])
	assert.NotContains(t, props, "dealstage")
}

func TestResolveStageID(t *testing.T) {
	m := New(&fakeProvider{schemas: map[string]*schema.Schema{hubspot.ObjectDeals: dealSchema()}})
	id, ok := m.ResolveStageID(context.Background(), "Cierre ganado")
	require.True(t, ok)
	assert.Equal(t, "closedwon", id)

	_, ok = New(&fakeProvider{err: errors.New("boom")}).ResolveStageID(context.Background(), "closedwon")
	assert.False(t, ok)
}

func TestTaskHelpers(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), NextStepDueDate("Send proposal by 2025-03-10", now, 1))
	assert.Equal(t, now.AddDate(0, 0, 2), NextStepDueDate("Send proposal", now, 2))

	props := TaskProperties(" Send proposal ", "", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, map[string]string{
		"hs_task_subject": "Send proposal",
		"hs_task_status":  "NOT_STARTED",
		"hs_timestamp":    "1741564800000",
	}, props)
}

func TestEpochMillis(t *testing.T) {
	ms, ok := EpochMillis("2025-03-01")
	assert.True(t, ok)
	assert.Equal(t, "1740787200000", ms)

	ms, ok = EpochMillis("2025-03-01T12:00:00-06:00")
	assert.True(t, ok)
	assert.Equal(t, "1740852000000", ms)

	_, ok = EpochMillis("03/01/2025")
	assert.False(t, ok)
	_, ok = EpochMillis("")
	assert.False(t, ok)
}

func TestParseDatePrefix(t *testing.T) {
	d, ok := ParseDatePrefix("2025-04-02 moved from last week")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), d)

	_, ok = ParseDatePrefix("April 2")
	assert.False(t, ok)
}
