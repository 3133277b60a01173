package testutil

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"model-artefact-registry/internal/core/domain"
)

// MockRegistry is a mock of the modelctl Registry. UploadArtefact drains
// the body into Uploaded.
type MockRegistry struct {
	mock.Mock
	Uploaded []byte
}

func (m *MockRegistry) Create(ctx context.Context, id, name string, description *string, tags domain.Tags) (*domain.ModelRecord, error) {
	args := m.Called(ctx, id, name, description, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelRecord), args.Error(1)
}

func (m *MockRegistry) Get(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ModelRecord), args.Bool(1), args.Error(2)
}

func (m *MockRegistry) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelRecord), args.Error(1)
}

func (m *MockRegistry) Update(ctx context.Context, id string, updates map[string]interface{}) (*domain.ModelRecord, bool, error) {
	args := m.Called(ctx, id, updates)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ModelRecord), args.Bool(1), args.Error(2)
}

func (m *MockRegistry) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ModelRecord), args.Bool(1), args.Error(2)
}

func (m *MockRegistry) UploadArtefact(ctx context.Context, id string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.Uploaded = data
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) DownloadArtefact(ctx context.Context, id string) (*domain.Artefact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artefact), args.Error(1)
}
