package models

import (
	"encoding/json"
	"time"
)

// WriteIntentKind identifies the dual-write operation an intent belongs to.
type WriteIntentKind string

const (
	IntentInstitutionRegister WriteIntentKind = "institution_register"
	IntentCredentialIssue     WriteIntentKind = "credential_issue"
	IntentCredentialRevoke    WriteIntentKind = "credential_revoke"
)

// WriteIntentStatus tracks the phases of a chain-then-store write.
type WriteIntentStatus string

const (
	// IntentPending: recorded before the chain write is submitted.
	IntentPending WriteIntentStatus = "pending"
	// IntentChainConfirmed: chain write confirmed, off-chain persist outstanding.
	// This is the recoverable-inconsistency state the reconciler repairs.
	IntentChainConfirmed WriteIntentStatus = "chain_confirmed"
	// IntentCompleted: both phases done.
	IntentCompleted WriteIntentStatus = "completed"
	// IntentAborted: chain write failed, nothing to repair.
	IntentAborted WriteIntentStatus = "aborted"
)

// WriteIntent is the durable record emitted before each two-phase write. A
// crash between phases leaves a chain_confirmed intent behind; reconciliation
// replays the off-chain phase from the stored payload.
type WriteIntent struct {
	ID              string            `db:"id" json:"id"`
	Kind            WriteIntentKind   `db:"kind" json:"kind"`
	Status          WriteIntentStatus `db:"status" json:"status"`
	Payload         json.RawMessage   `db:"payload" json:"payload"`
	TransactionHash string            `db:"transaction_hash" json:"transaction_hash"`
	BlockNumber     uint64            `db:"block_number" json:"block_number"`
	Attempts        int               `db:"attempts" json:"attempts"`
	LastError       *string           `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}
