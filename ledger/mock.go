package ledger

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

// MockLedger mocks the AuthorizationLedger interface. Tests use it to
// inject write failures at exact points of the rotation sequence.
type MockLedger struct {
	mock.Mock
}

// GetRecordEnvelope mocks the GetRecordEnvelope method.
func (m *MockLedger) GetRecordEnvelope(ctx context.Context, ref interfaces.RecordRef) (interfaces.DocumentEnvelope, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(interfaces.DocumentEnvelope), args.Error(1)
}

// GetGrants mocks the GetGrants method.
func (m *MockLedger) GetGrants(ctx context.Context, ref interfaces.RecordRef) (map[interfaces.PrincipalID]interfaces.AccessGrant, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(map[interfaces.PrincipalID]interfaces.AccessGrant), args.Error(1)
}

// CommitRecordUpdate mocks the CommitRecordUpdate method.
func (m *MockLedger) CommitRecordUpdate(ctx context.Context, envelope interfaces.DocumentEnvelope) error {
	args := m.Called(ctx, envelope)
	return args.Error(0)
}

// CommitGrantUpdate mocks the CommitGrantUpdate method.
func (m *MockLedger) CommitGrantUpdate(ctx context.Context, grant interfaces.AccessGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

// RemoveGrant mocks the RemoveGrant method.
func (m *MockLedger) RemoveGrant(ctx context.Context, ref interfaces.RecordRef, recipient interfaces.PrincipalID) error {
	args := m.Called(ctx, ref, recipient)
	return args.Error(0)
}
