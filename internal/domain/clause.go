package domain

import (
	"time"
)

// Clause is a pre-classified contract text unit produced by upstream
// extraction. Clauses are immutable once ingested.
type Clause struct {
	ID         string `json:"id"`
	ContractID string `json:"contractId"`

	// Clause type tag (e.g. "pricing", "payment", "termination")
	ClauseType string `json:"clauseType"`

	// Original clause text from the contract
	OriginalText string `json:"originalText"`

	// Pre-computed risk pattern tags (e.g. "no_price_escalation")
	RiskSignals []string `json:"riskSignals,omitempty"`

	// Structured entities extracted upstream
	Entities ExtractedEntities `json:"entities"`

	// Optional location metadata
	SectionNumber string `json:"sectionNumber,omitempty"`
	PageNumber    int    `json:"pageNumber,omitempty"`

	ExtractedAt time.Time `json:"extractedAt,omitempty"`
}

// ExtractedEntities holds structured data pulled from clause text.
type ExtractedEntities struct {
	Amounts  []float64 `json:"amounts,omitempty"`
	Currency string    `json:"currency,omitempty"`
	Parties  []string  `json:"parties,omitempty"`
}

// HasRiskSignal reports whether the clause carries the given risk tag.
func (c *Clause) HasRiskSignal(signal string) bool {
	for _, s := range c.RiskSignals {
		if s == signal {
			return true
		}
	}
	return false
}

// ContractMetadata holds the contract-level figures the engine needs.
// ContractValue is 0 when unknown; currency defaults to USD.
type ContractMetadata struct {
	ContractValue    float64 `json:"contractValue"`
	ContractCurrency string  `json:"contractCurrency"`
	DurationYears    float64 `json:"durationYears"`
}

// Contract is the persisted contract record.
type Contract struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenantId"`
	Name         string `json:"name"`
	Counterparty string `json:"counterparty,omitempty"`

	Metadata ContractMetadata `json:"metadata"`

	StartDate string `json:"startDate,omitempty"` // RFC 3339
	EndDate   string `json:"endDate,omitempty"`   // RFC 3339

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContractRequest is the API request payload for contract ingestion.
type ContractRequest struct {
	Name         string           `json:"name"`
	Counterparty string           `json:"counterparty,omitempty"`
	Metadata     ContractMetadata `json:"metadata"`
	StartDate    string           `json:"startDate,omitempty"`
	EndDate      string           `json:"endDate,omitempty"`
	Clauses      []ClauseRequest  `json:"clauses"`
}

// ClauseRequest is one clause in a contract ingestion request.
type ClauseRequest struct {
	ID            string            `json:"id,omitempty"`
	ClauseType    string            `json:"clauseType"`
	OriginalText  string            `json:"originalText"`
	RiskSignals   []string          `json:"riskSignals,omitempty"`
	Entities      ExtractedEntities `json:"entities"`
	SectionNumber string            `json:"sectionNumber,omitempty"`
	PageNumber    int               `json:"pageNumber,omitempty"`
}

// ToClause converts a request clause to a domain Clause.
func (r *ClauseRequest) ToClause(contractID string) *Clause {
	return &Clause{
		ID:            r.ID,
		ContractID:    contractID,
		ClauseType:    r.ClauseType,
		OriginalText:  r.OriginalText,
		RiskSignals:   r.RiskSignals,
		Entities:      r.Entities,
		SectionNumber: r.SectionNumber,
		PageNumber:    r.PageNumber,
		ExtractedAt:   time.Now().UTC(),
	}
}
