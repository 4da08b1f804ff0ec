// Package matching finds existing CRM deals that plausibly represent the
// same opportunity as an extraction. It never writes to the CRM.
package matching

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// DefaultLimit is used when FindMatchingDeals gets a non-positive limit.
const DefaultLimit = 5

// Strategy confidences.
const (
	ConfidenceCompanyAssociation = 0.95
	ConfidenceDealNameExact      = 0.85
	ConfidenceDealNameContains   = 0.7
	ConfidenceDealNameToken      = 0.5
	ConfidenceContactEmail       = 0.6
	ConfidenceContactName        = 0.5
)

// Strategy produces candidates independently of the others.
type Strategy interface {
	Name() string
	// Unfiltered reports whether the strategy is retried without the
	// pipeline filter when the filter eliminates every candidate.
	Unfiltered() bool
	Find(ctx context.Context, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error)
}

// Engine pools and ranks candidates from several strategies.
type Engine struct {
	strategies []Strategy
}

// New creates an Engine with the company-association, deal-name and contact
// strategies.
func New(crm hubspot.Client) *Engine {
	return NewWithStrategies(
		&CompanyAssociation{crm: crm},
		&DealName{crm: crm},
		&Contact{crm: crm},
	)
}

// NewWithStrategies creates an Engine from explicit strategies.
func NewWithStrategies(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// FindMatchingDeals returns at most limit candidates sorted by confidence,
// one per deal id. It fails only when every strategy fails.
func (e *Engine) FindMatchingDeals(ctx context.Context, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	pooled, err := e.run(ctx, e.strategies, ext, limit, pipeline)
	if err != nil {
		return nil, err
	}

	if len(pooled) == 0 && pipeline != "" {
		var retry []Strategy
		for _, s := range e.strategies {
			if s.Unfiltered() {
				retry = append(retry, s)
			}
		}
		if len(retry) > 0 {
			zap.L().Debug("matching: pipeline filter removed all candidates, retrying unfiltered",
				zap.String("pipeline", pipeline))
			if pooled, err = e.run(ctx, retry, ext, limit, ""); err != nil {
				return nil, err
			}
		}
	}

	return Rank(pooled, limit), nil
}

func (e *Engine) run(ctx context.Context, strategies []Strategy, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error) {
	results := make([][]model.DealMatchCandidate, len(strategies))
	errs := make([]error, len(strategies))

	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			cands, err := s.Find(ctx, ext, limit, pipeline)
			if err != nil {
				zap.L().Warn("matching: strategy failed",
					zap.String("strategy", s.Name()),
					zap.Error(err),
				)
				errs[i] = err
				return nil
			}
			results[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	var pooled []model.DealMatchCandidate
	failed := 0
	for i := range strategies {
		if errs[i] != nil {
			failed++
			continue
		}
		pooled = append(pooled, results[i]...)
	}
	if len(strategies) > 0 && failed == len(strategies) {
		return nil, errors.Join(errs...)
	}
	return pooled, nil
}

// Rank sorts candidates by confidence, keeps the first occurrence of each
// deal id and truncates to limit. Ties keep strategy order.
func Rank(cands []model.DealMatchCandidate, limit int) []model.DealMatchCandidate {
	sorted := make([]model.DealMatchCandidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	seen := make(map[string]bool, len(sorted))
	out := make([]model.DealMatchCandidate, 0, min(limit, len(sorted)))
	for _, c := range sorted {
		if seen[c.DealID] {
			continue
		}
		seen[c.DealID] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

func candidateFromDeal(d hubspot.Object, confidence float64, strategy, reason string) model.DealMatchCandidate {
	c := model.DealMatchCandidate{
		DealID:     d.ID,
		DealName:   d.Get("dealname"),
		Amount:     d.Get("amount"),
		Stage:      d.Get("dealstage"),
		Pipeline:   d.Get("pipeline"),
		Confidence: confidence,
		Reason:     reason,
		Strategy:   strategy,
	}
	if t, ok := lastModified(d); ok {
		c.LastModified = &t
	}
	return c
}

func lastModified(d hubspot.Object) (time.Time, bool) {
	if v := d.Get("hs_lastmodifieddate"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt, true
	}
	return time.Time{}, false
}

func inPipeline(d hubspot.Object, pipeline string) bool {
	return pipeline == "" || strings.EqualFold(d.Get("pipeline"), pipeline)
}
