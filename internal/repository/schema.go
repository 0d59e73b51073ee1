package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaContracts = `
CREATE TABLE IF NOT EXISTS contracts (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    counterparty TEXT,
    contract_value REAL NOT NULL DEFAULT 0,
    contract_currency TEXT,
    duration_years REAL NOT NULL DEFAULT 0,
    start_date TEXT,
    end_date TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_contracts_tenant ON contracts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_contracts_counterparty ON contracts(tenant_id, counterparty);
`

const schemaClauses = `
CREATE TABLE IF NOT EXISTS clauses (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    contract_id TEXT NOT NULL,
    clause_type TEXT NOT NULL,
    original_text TEXT NOT NULL,
    risk_signals TEXT,
    entities TEXT,
    section_number TEXT,
    page_number INTEGER NOT NULL DEFAULT 0,
    extracted_at TIMESTAMP,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_clauses_tenant ON clauses(tenant_id);
CREATE INDEX IF NOT EXISTS idx_clauses_contract ON clauses(tenant_id, contract_id);
CREATE INDEX IF NOT EXISTS idx_clauses_type ON clauses(tenant_id, clause_type);
`

const schemaFindings = `
CREATE TABLE IF NOT EXISTS findings (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    contract_id TEXT NOT NULL,
    clause_ids TEXT NOT NULL,
    leakage_category TEXT NOT NULL,
    risk_type TEXT NOT NULL,
    detection_method TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    confidence REAL NOT NULL,
    explanation TEXT NOT NULL,
    business_impact TEXT,
    recommended_action TEXT,
    estimated_impact TEXT NOT NULL,
    assumptions TEXT,
    detected_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_findings_tenant ON findings(tenant_id);
CREATE INDEX IF NOT EXISTS idx_findings_contract ON findings(tenant_id, contract_id);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(tenant_id, severity);
CREATE INDEX IF NOT EXISTS idx_findings_category ON findings(tenant_id, leakage_category);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaContracts,
		schemaClauses,
		schemaFindings,
	}
}
