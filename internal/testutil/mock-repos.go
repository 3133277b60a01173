package testutil

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"model-artefact-registry/internal/core/domain"
)

// MockModelRecordRepo is a mock of ModelRecordRepository.
type MockModelRecordRepo struct {
	mock.Mock
}

func (m *MockModelRecordRepo) GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ModelRecord), args.Bool(1), args.Error(2)
}

func (m *MockModelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockModelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockModelRecordRepo) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ModelRecord), args.Bool(1), args.Error(2)
}

func (m *MockModelRecordRepo) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelRecord), args.Error(1)
}

func (m *MockModelRecordRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockArtefactStore is a mock of ArtefactStore. Put drains the body so the
// uploaded bytes can be asserted through Uploaded.
type MockArtefactStore struct {
	mock.Mock
	Uploaded []byte
}

func (m *MockArtefactStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.Uploaded = data
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockArtefactStore) Get(ctx context.Context, key string) (*domain.Artefact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artefact), args.Error(1)
}

func (m *MockArtefactStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
