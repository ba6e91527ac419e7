package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const adminAddress = "0x00000000000000000000000000000000000000AD"

func TestAdminPolicy_Allow(t *testing.T) {
	policy := NewAdminPolicy(adminAddress)

	for _, op := range []Operation{
		OpRegisterInstitution,
		OpVerifyInstitution,
		OpSuspendInstitution,
		OpIssueCredential,
		OpRevokeCredential,
		OpReconcile,
	} {
		assert.True(t, policy.Allow(adminAddress, op), "admin should pass %s", op)
		assert.False(t, policy.Allow("0x00000000000000000000000000000000000000bb", op))
	}
}

func TestAdminPolicy_CaseInsensitive(t *testing.T) {
	policy := NewAdminPolicy("0xAbCd000000000000000000000000000000000001")

	assert.True(t, policy.Allow("0xabcd000000000000000000000000000000000001", OpIssueCredential))
	assert.True(t, policy.IsAdmin("0xABCD000000000000000000000000000000000001"))
}

func TestAdminPolicy_EmptyAdminAuthorizesNobody(t *testing.T) {
	policy := NewAdminPolicy("")

	assert.False(t, policy.Allow(adminAddress, OpRegisterInstitution))
	assert.False(t, policy.Allow("", OpRegisterInstitution))
	assert.False(t, policy.IsAdmin(adminAddress))
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allow(string, Operation) bool { return true }

func TestIsAdmin(t *testing.T) {
	assert.False(t, IsAdmin(nil, adminAddress))
	assert.True(t, IsAdmin(NewAdminPolicy(adminAddress), adminAddress))
	assert.False(t, IsAdmin(NewAdminPolicy(adminAddress), "0x00000000000000000000000000000000000000bb"))
	assert.True(t, IsAdmin(allowAllPolicy{}, "0x00000000000000000000000000000000000000bb"))
}
