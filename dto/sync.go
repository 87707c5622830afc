package dto

type SyncMode string

const (
	SyncModeBootstrap   SyncMode = "bootstrap"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncResult summarizes one completed sync pass for an account.
type SyncResult struct {
	AccountID        string   `json:"accountId"`
	Mode             SyncMode `json:"mode"`
	RecordsProcessed int      `json:"recordsProcessed"`
	EmailsCreated    int      `json:"emailsCreated"`
	DeltaToken       string   `json:"deltaToken"`
}
