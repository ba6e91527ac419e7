// Package auth decides which wallet accounts may perform which lifecycle
// operations.
package auth

import (
	"github.com/noah-isme/credchain-api/pkg/ethaddr"
)

// Operation names a guarded lifecycle action.
type Operation string

const (
	OpRegisterInstitution Operation = "institution:register"
	OpVerifyInstitution   Operation = "institution:verify"
	OpSuspendInstitution  Operation = "institution:suspend"
	OpIssueCredential     Operation = "credential:issue"
	OpRevokeCredential    Operation = "credential:revoke"
	OpReconcile           Operation = "reconcile:run"
)

// Policy is the authorization gate injected into the lifecycle services. It is
// a pure predicate so tests can substitute roles freely.
type Policy interface {
	Allow(caller string, op Operation) bool
}

// AdminPolicy authorizes a single configured admin account for every guarded
// operation. Issuer self-service on credentials is decided by the credential
// service on top of this gate.
type AdminPolicy struct {
	admin string
}

// NewAdminPolicy builds the policy around the configured admin address.
func NewAdminPolicy(adminAddress string) *AdminPolicy {
	return &AdminPolicy{admin: ethaddr.Normalize(adminAddress)}
}

// Allow reports whether the caller may perform the operation. Comparison is
// case-insensitive; an empty configured admin authorizes nobody.
func (p *AdminPolicy) Allow(caller string, op Operation) bool {
	if p.admin == "" || caller == "" {
		return false
	}
	return ethaddr.Normalize(caller) == p.admin
}

// IsAdmin reports whether the account is the configured admin.
func (p *AdminPolicy) IsAdmin(account string) bool {
	return p.admin != "" && ethaddr.Normalize(account) == p.admin
}

// IsAdmin reports whether the account holds administrative rights under the
// policy. Policies that do not distinguish admins fall back to the institution
// registration gate, which only admins pass.
func IsAdmin(p Policy, account string) bool {
	if p == nil {
		return false
	}
	if checker, ok := p.(interface{ IsAdmin(string) bool }); ok {
		return checker.IsAdmin(account)
	}
	return p.Allow(account, OpRegisterInstitution)
}
