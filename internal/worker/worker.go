// Package worker provides async contract analysis from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/contractops/kestrel/internal/analysis"
	"github.com/contractops/kestrel/internal/domain"
)

// Worker analyzes contracts asynchronously as ingestion events arrive.
type Worker struct {
	bus      domain.EventBus
	analyzer *analysis.Analyzer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global subscription)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, analyzer *analysis.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing ingestion events for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicContractIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicContractIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processContract(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicContractIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processContract(ctx, msg.TenantID, msg)
}

// processContract runs the analysis pipeline for one ingested contract.
func (w *Worker) processContract(ctx context.Context, tenantID string, msg *domain.Message) error {
	var in domain.ContractIngested
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		slog.Error("failed to parse ingestion message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if in.TenantID != "" {
		tenantID = in.TenantID
	}

	slog.Debug("processing contract",
		"contract_id", in.ContractID,
		"tenant_id", tenantID,
	)

	result, err := w.analyzer.Analyze(ctx, tenantID, in.ContractID)
	if err != nil {
		slog.Error("contract analysis failed",
			"contract_id", in.ContractID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"contract_id", in.ContractID,
			"error", err,
		)
	}

	// High-severity findings additionally raise a compact alert event.
	if alert := buildAlert(tenantID, result); alert != nil {
		alertPayload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicFindingAlert, alertPayload); err != nil {
			slog.Error("failed to publish finding alert",
				"contract_id", in.ContractID,
				"error", err,
			)
		}
	}

	slog.Info("contract processed",
		"contract_id", in.ContractID,
		"tenant_id", tenantID,
		"findings", len(result.Findings),
		"risk_level", result.Summary.RiskLevel,
	)

	return nil
}

// buildAlert condenses an analysis result into a FindingAlert. Returns
// nil when no finding reaches high severity.
func buildAlert(tenantID string, result *analysis.Result) *domain.FindingAlert {
	alertable := false
	ruleIDs := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		ruleIDs = append(ruleIDs, f.RuleID)
		if f.Severity == domain.SeverityCritical || f.Severity == domain.SeverityHigh {
			alertable = true
		}
	}
	if !alertable {
		return nil
	}

	return &domain.FindingAlert{
		ContractID:           result.ContractID,
		TenantID:             tenantID,
		HighestSeverity:      result.Summary.HighestSeverity,
		RiskLevel:            result.Summary.RiskLevel,
		FindingCount:         result.Summary.TotalFindings,
		TotalEstimatedImpact: result.Summary.TotalEstimatedImpact,
		Currency:             result.Summary.Currency,
		RuleIDs:              ruleIDs,
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
