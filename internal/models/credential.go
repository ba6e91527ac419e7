package models

import (
	"fmt"
	"time"
)

// DegreeType mirrors the transcript contract enum. Values outside the declared
// range are rejected during decoding.
type DegreeType int

const (
	DegreeAssociate DegreeType = iota
	DegreeBachelor
	DegreeMaster
	DegreeDoctorate
	DegreeCertificate
	DegreeDiploma
	DegreePostdoctorate
)

var degreeTypeNames = [...]string{
	"Associate",
	"Bachelor",
	"Master",
	"Doctorate",
	"Certificate",
	"Diploma",
	"Postdoctorate",
}

// Valid reports whether the value is inside the contract enum range.
func (d DegreeType) Valid() bool {
	return d >= DegreeAssociate && d <= DegreePostdoctorate
}

func (d DegreeType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Unknown(%d)", int(d))
	}
	return degreeTypeNames[d]
}

// ParseDegreeType resolves a degree name into its enum value.
func ParseDegreeType(name string) (DegreeType, error) {
	for i, n := range degreeTypeNames {
		if n == name {
			return DegreeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown degree type %q", name)
}

// CredentialStatus is a monotonic one-way state: Active credentials can be
// revoked, revoked credentials stay revoked.
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "Active"
	CredentialRevoked CredentialStatus = "Revoked"
)

// ChainCredentialStatus is the numeric status enum used on chain.
type ChainCredentialStatus int

const (
	ChainStatusActive ChainCredentialStatus = iota
	ChainStatusRevoked
)

// Valid reports whether the value is a known chain status.
func (s ChainCredentialStatus) Valid() bool {
	return s == ChainStatusActive || s == ChainStatusRevoked
}

func (s ChainCredentialStatus) String() string {
	if s == ChainStatusRevoked {
		return string(CredentialRevoked)
	}
	return string(CredentialActive)
}

// Credential is the off-chain mirror of an issued transcript. The on-chain
// record remains the trust anchor; this row is the read path for listings.
type Credential struct {
	ID                 string           `db:"id" json:"id"`
	ChainID            *uint64          `db:"chain_id" json:"chain_id,omitempty"`
	StudentID          string           `db:"student_id" json:"student_id"`
	StudentAddress     string           `db:"student_address" json:"student_address"`
	InstitutionAddress string           `db:"institution_address" json:"institution_address"`
	DegreeType         DegreeType       `db:"degree_type" json:"degree_type"`
	GraduationYear     int              `db:"graduation_year" json:"graduation_year"`
	DocumentHash       string           `db:"document_hash" json:"document_hash"`
	IPFSCID            string           `db:"ipfs_cid" json:"ipfs_cid"`
	IPFSURL            string           `db:"ipfs_url" json:"ipfs_url"`
	TransactionHash    string           `db:"transaction_hash" json:"transaction_hash"`
	BlockNumber        uint64           `db:"block_number" json:"block_number"`
	Status             CredentialStatus `db:"status" json:"status"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	RevokedAt          *time.Time       `db:"revoked_at" json:"revoked_at,omitempty"`
	RevocationReason   *string          `db:"revocation_reason" json:"revocation_reason,omitempty"`
}

// CredentialFilter narrows credential listings. Results are always ordered by
// creation time, most recent first.
type CredentialFilter struct {
	StudentAddress     string
	InstitutionAddress string
	Status             CredentialStatus
	Page               int
	PageSize           int
}

// ChainCredential is the decoded canonical on-chain transcript record.
type ChainCredential struct {
	ID             uint64                `json:"id"`
	StudentID      string                `json:"student_id"`
	IssuedBy       string                `json:"issued_by"`
	DocumentHash   string                `json:"document_hash"`
	DegreeType     DegreeType            `json:"degree_type"`
	DateIssued     int64                 `json:"date_issued"`
	IPFSCID        string                `json:"ipfs_cid"`
	StudentAddress string                `json:"student_address"`
	Status         ChainCredentialStatus `json:"status"`
	GraduationYear int                   `json:"graduation_year"`
}
