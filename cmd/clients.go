package main

import (
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sells-group/dealsync/internal/merge"
	"github.com/sells-group/dealsync/internal/resilience"
	"github.com/sells-group/dealsync/internal/schema"
	"github.com/sells-group/dealsync/internal/store"
	anthropicpkg "github.com/sells-group/dealsync/pkg/anthropic"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

func initHubSpot() hubspot.Client {
	return hubspot.NewStaticClient(cfg.HubSpot.Token,
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithRateLimit(cfg.HubSpot.RateLimitRequests, cfg.HubSpot.RateLimitWindow()),
		hubspot.WithRetry(resilience.FromRetryConfig(cfg.HubSpot.MaxRetries+1, 0, 0)),
		hubspot.WithTimeout(time.Duration(cfg.HubSpot.TimeoutSecs)*time.Second),
	)
}

func initSchemas(crm hubspot.Client, st store.Store) *schema.Service {
	return schema.NewService(crm, cfg.HubSpot.ConnectionID,
		schema.WithDurableTier(schema.NewDurableTier(st)),
		schema.WithMemoryTTL(time.Duration(cfg.Schema.MemoryTTLMins)*time.Minute),
		schema.WithDurableTTL(time.Duration(cfg.Schema.DurableTTLHours)*time.Hour),
	)
}

// initMerger returns the assisted strategy behind a circuit breaker with the
// deterministic rules as fallback, or the rules alone when assisted merge is
// off.
func initMerger() merge.Strategy {
	if !cfg.Merge.Assisted {
		return merge.Deterministic{}
	}

	cbCfg := resilience.FromCircuitConfig(cfg.Merge.CircuitFailureThreshold, cfg.Merge.CircuitResetSecs)
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("merge: assisted circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	// The breaker and fallback handle failures; SDK retries would only add latency.
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(0))
	assisted := merge.NewAssisted(client,
		merge.WithModel(cfg.Anthropic.Model),
		merge.WithMaxTokens(cfg.Anthropic.MaxTokens),
		merge.WithTranscriptLimit(cfg.Merge.TranscriptMaxChars),
		merge.WithBreaker(resilience.NewCircuitBreaker(cbCfg)),
	)
	return merge.WithFallback(assisted, merge.Deterministic{})
}
