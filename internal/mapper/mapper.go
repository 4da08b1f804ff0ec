package mapper

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/schema"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// DealName generates the default deal name for an extraction.
func DealName(ext *model.Extraction) string {
	if name := strings.TrimSpace(ext.CompanyName); name != "" {
		return name + " Deal"
	}
	if name := strings.TrimSpace(ext.ContactName); name != "" {
		return name
	}
	return "New Deal"
}

// MapDealProperties applies the fixed scalar and dynamic field rules. The
// stage is not included; see Mapper.MapDeal. Dynamic keys missing from sc
// pass through; sc may be nil.
func MapDealProperties(ext *model.Extraction, dealName string, sc *schema.Schema) map[string]string {
	props := make(map[string]string)

	for key, v := range ext.RawExtraction {
		if Classify(key, sc) != RoleDynamic {
			continue
		}
		p, known := sc.Property(key)
		if (known && schema.IsDate(p)) || dateKey.MatchString(key) {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if ms, ok := EpochMillis(s); ok {
				props[key] = ms
			}
			continue
		}
		if s, ok := stringify(v); ok {
			props[key] = s
		}
	}

	if dealName == "" {
		dealName = DealName(ext)
	}
	props[PropDealName] = dealName

	if ext.DealAmount != nil {
		props[PropAmount] = FormatAmount(*ext.DealAmount)
	}

	closeDate := ext.CloseDate
	if closeDate == "" {
		closeDate = rawString(ext.RawExtraction, PropCloseDate, "close_date")
	}
	if ms, ok := EpochMillis(closeDate); ok {
		props[PropCloseDate] = ms
	}

	if s := strings.TrimSpace(ext.Summary); s != "" {
		props[PropDescription] = s
	}
	return props
}

func rawString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Mapper resolves schema-dependent parts of the mapping.
type Mapper struct {
	schemas schema.Provider
}

// New creates a Mapper backed by a schema provider.
func New(schemas schema.Provider) *Mapper {
	return &Mapper{schemas: schemas}
}

// MapDeal maps an extraction and adds the resolved stage and its pipeline.
// A schema failure degrades to the schema-free mapping without a stage.
func (m *Mapper) MapDeal(ctx context.Context, ext *model.Extraction, dealName string) map[string]string {
	sc, err := m.schemas.GetSchema(ctx, hubspot.ObjectDeals, true)
	if err != nil {
		zap.L().Warn("mapper: deal schema unavailable, stage not resolved", zap.Error(err))
		sc = nil
	}

	props := MapDealProperties(ext, dealName, sc)

	raw := ext.DealStage
	if raw == "" {
		raw = rawString(ext.RawExtraction, PropDealStage, "deal_stage")
	}
	if raw == "" || sc == nil {
		return props
	}
	if st, ok := ResolveStage(sc, raw); ok {
		props[PropDealStage] = st.ID
		props[PropPipeline] = st.PipelineID
	} else {
		zap.L().Info("mapper: stage not resolved, omitting", zap.String("stage", raw))
	}
	return props
}

// ResolveStageID resolves a stage label or id against the deal schema.
func (m *Mapper) ResolveStageID(ctx context.Context, raw string) (string, bool) {
	sc, err := m.schemas.GetSchema(ctx, hubspot.ObjectDeals, true)
	if err != nil {
		zap.L().Warn("mapper: deal schema unavailable", zap.Error(err))
		return "", false
	}
	st, ok := ResolveStage(sc, raw)
	return st.ID, ok
}

// SanitizeEnumProperties runs the enum gate against the current schema of
// objectType. When the schema cannot be fetched the properties pass through
// unchanged so the write is not blocked.
func (m *Mapper) SanitizeEnumProperties(ctx context.Context, objectType string, props map[string]string) map[string]string {
	sc, err := m.schemas.GetSchema(ctx, objectType, true)
	if err != nil {
		zap.L().Warn("mapper: schema unavailable, skipping enum sanitization",
			zap.String("object_type", objectType),
			zap.Error(err),
		)
		return props
	}
	return SanitizeEnums(sc, props)
}
