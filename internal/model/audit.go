package model

import "time"

// Audit actions emitted by the service.
const (
	AuditActionEnrich     = "company.enrich"
	AuditActionLateEnrich = "company.enrich_late"
	AuditActionReport     = "report.generate"
	AuditActionSettings   = "settings.update"
	AuditActionCredential = "credential.rotate"
)

// AuditEntry is one structured record for the audit log sink.
type AuditEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Credential is an encrypted vendor secret keyed by service name.
type Credential struct {
	Service         string    `json:"service"`
	EncryptedSecret string    `json:"-"`
	UpdatedAt       time.Time `json:"updated_at"`
}
