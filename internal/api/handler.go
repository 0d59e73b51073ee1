package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contractops/kestrel/internal/analysis"
	"github.com/contractops/kestrel/internal/domain"
	"github.com/contractops/kestrel/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	analyzer  *analysis.Analyzer
	rulesPath string
	engineCfg domain.EngineConfig
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, analyzer *analysis.Analyzer, rulesPath string, engineCfg domain.EngineConfig, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		analyzer:  analyzer,
		rulesPath: rulesPath,
		engineCfg: engineCfg,
		version:   version,
	}
}

// IngestResponse is the response for POST /contracts.
type IngestResponse struct {
	ContractID  string `json:"contractId"`
	ClauseCount int    `json:"clauseCount"`
	Status      string `json:"status"`
	Metadata    struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// IngestContract handles POST /contracts. The contract and its clauses
// are persisted and an ingestion event is published; analysis happens
// asynchronously via the worker.
func (h *Handler) IngestContract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.ContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if len(req.Clauses) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one clause is required",
		})
		return
	}
	for _, c := range req.Clauses {
		if c.ClauseType == "" || c.OriginalText == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "clauseType and originalText are required for every clause",
			})
			return
		}
	}

	contractID := uuid.New().String()
	now := time.Now().UTC()

	contract := &domain.Contract{
		ID:           contractID,
		TenantID:     tenantID,
		Name:         req.Name,
		Counterparty: req.Counterparty,
		Metadata:     req.Metadata,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	clauses := make([]*domain.Clause, len(req.Clauses))
	for i := range req.Clauses {
		clause := req.Clauses[i].ToClause(contractID)
		if clause.ID == "" {
			clause.ID = uuid.New().String()
		}
		clauses[i] = clause
	}

	if err := h.repo.SaveContract(ctx, tenantID, contract); err != nil {
		slog.Error("failed to save contract", "contract_id", contractID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save contract",
		})
		return
	}
	if err := h.repo.SaveClauses(ctx, tenantID, clauses); err != nil {
		slog.Error("failed to save clauses", "contract_id", contractID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save clauses",
		})
		return
	}

	status := "stored"
	if h.bus != nil {
		payload, _ := json.Marshal(domain.ContractIngested{
			ContractID: contractID,
			TenantID:   tenantID,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicContractIngested, payload); err != nil {
			slog.Error("failed to publish ingestion event", "contract_id", contractID, "error", err)
		} else {
			status = "queued"
		}
	}

	slog.Info("contract ingested",
		"contract_id", contractID,
		"tenant_id", tenantID,
		"clauses", len(clauses),
	)

	resp := IngestResponse{
		ContractID:  contractID,
		ClauseCount: len(clauses),
		Status:      status,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusAccepted, resp)
}

// AnalyzeContract handles POST /contracts/{id}/analyze. Analysis runs
// synchronously and the full result is returned.
func (h *Handler) AnalyzeContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	contractID := chi.URLParam(r, "id")

	if contractID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contract id is required",
		})
		return
	}

	if _, err := h.repo.GetContract(ctx, tenantID, contractID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "contract not found",
		})
		return
	}

	result, err := h.analyzer.Analyze(ctx, tenantID, contractID)
	if err != nil {
		slog.Error("contract analysis failed", "contract_id", contractID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListContracts returns all contracts for the tenant.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	contracts, err := h.repo.ListContracts(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list contracts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list contracts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": contracts,
		"count":     len(contracts),
	})
}

// GetContract retrieves a contract by ID.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	contractID := chi.URLParam(r, "id")

	if contractID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contract id is required",
		})
		return
	}

	contract, err := h.repo.GetContract(ctx, tenantID, contractID)
	if err != nil {
		slog.Error("failed to get contract", "id", contractID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "contract not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, contract)
}

// ListContractFindings returns the persisted findings for a contract.
func (h *Handler) ListContractFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	contractID := chi.URLParam(r, "id")

	if contractID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contract id is required",
		})
		return
	}

	findings, err := h.repo.ListFindings(ctx, tenantID, contractID)
	if err != nil {
		slog.Error("failed to list findings", "contract_id", contractID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list findings",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"findings": findings,
		"count":    len(findings),
	})
}

// GetFinding retrieves a finding by ID.
func (h *Handler) GetFinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	findingID := chi.URLParam(r, "id")

	if findingID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "finding id is required",
		})
		return
	}

	finding, err := h.repo.GetFinding(ctx, tenantID, findingID)
	if err != nil {
		slog.Error("failed to get finding", "id", findingID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "finding not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, finding)
}

// GetProfile returns the contract's risk profile, building it if no
// cached copy exists.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	contractID := chi.URLParam(r, "id")

	if contractID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "contract id is required",
		})
		return
	}

	profile, err := h.analyzer.Profile(ctx, tenantID, contractID)
	if err != nil {
		slog.Error("failed to build profile", "contract_id", contractID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "contract not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListRules returns all rules loaded in the engine.
// Rules are loaded from the YAML catalog at startup and can be reloaded
// via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.analyzer.Engine().Rules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "catalog",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.analyzer.Engine().Rules() {
		if rule.RuleID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// ReloadRules re-reads the YAML catalog and swaps a fresh engine in.
// This enables catalog hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.rulesPath == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no rule catalog configured",
		})
		return
	}

	catalog, err := rules.LoadCatalog(h.rulesPath)
	if err != nil {
		slog.Error("failed to load rule catalog", "path", h.rulesPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rule catalog: " + err.Error(),
		})
		return
	}

	engine, err := rules.NewEngine(catalog, h.engineCfg)
	if err != nil {
		slog.Error("failed to build rule engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	h.analyzer.SetEngine(engine)

	slog.Info("rules reloaded from catalog", "path", h.rulesPath, "count", engine.RuleCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   engine.RuleCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
