package models

import "time"

// InstitutionStatus is the off-chain usability state of an institution. It is
// intentionally independent of the on-chain isVerified flag: verification is a
// one-way trust attestation, status a reversible listing concern.
type InstitutionStatus string

const (
	InstitutionActive    InstitutionStatus = "Active"
	InstitutionSuspended InstitutionStatus = "Suspended"
)

// Institution is the off-chain record mirroring a registered institution.
// Address is the correlation key with the on-chain registry entry.
type Institution struct {
	ID              string            `db:"id" json:"id"`
	Address         string            `db:"address" json:"address"`
	Name            string            `db:"name" json:"name"`
	Country         string            `db:"country" json:"country"`
	Status          InstitutionStatus `db:"status" json:"status"`
	RegisteredBy    string            `db:"registered_by" json:"registered_by"`
	TransactionHash string            `db:"transaction_hash" json:"transaction_hash"`
	Version         int               `db:"version" json:"version"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	SuspendedAt     *time.Time        `db:"suspended_at" json:"suspended_at,omitempty"`
	ReactivatedAt   *time.Time        `db:"reactivated_at" json:"reactivated_at,omitempty"`
}

// InstitutionFilter narrows institution listings.
type InstitutionFilter struct {
	Status   InstitutionStatus
	Page     int
	PageSize int
}

// ChainInstitution is the decoded on-chain registry entry.
type ChainInstitution struct {
	ID             uint64 `json:"id"`
	WalletAddress  string `json:"wallet_address"`
	Name           string `json:"name"`
	Country        string `json:"country"`
	IsVerified     bool   `json:"is_verified"`
	DateRegistered int64  `json:"date_registered"`
}

// InstitutionStats aggregates the registry counters.
type InstitutionStats struct {
	TotalInstitutions    uint64 `json:"total_institutions"`
	VerifiedInstitutions uint64 `json:"verified_institutions"`
}
