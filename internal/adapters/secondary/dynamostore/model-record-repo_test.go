package dynamostore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-artefact-registry/internal/core/domain"
)

// fakeDynamo is an in-memory table that understands the two condition
// expressions the repository issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item[attrModelID].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	id := keyOf(in.Item)
	_, exists := f.items[id]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(model_id)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	case "attribute_exists(model_id)":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	id := keyOf(in.Key)
	old := f.items[id]
	delete(f.items, id)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func sampleRecord(id string) *domain.ModelRecord {
	now := time.Date(2024, 2, 29, 23, 59, 59, 999999000, time.UTC)
	desc := "gradient boosted"
	return &domain.ModelRecord{
		ModelID: id, Name: "demo", Description: &desc,
		Tags:      domain.Tags{"team": "ml", "epoch": int64(12)},
		CreatedAt: now, LastUpdatedAt: now, Version: 1,
	}
}

func TestModelRecordRepo_RoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewFromClient(fake, "model-table")
	ctx := context.Background()

	record := sampleRecord("m1")
	require.NoError(t, repo.Create(ctx, record))
	assert.ErrorIs(t, repo.Create(ctx, record), domain.ErrModelAlreadyExists)

	got, ok, err := repo.GetByID(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record, got)

	_, ok, err = repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelRecordRepo_ItemLayout(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewFromClient(fake, "model-table")

	require.NoError(t, repo.Create(context.Background(), sampleRecord("m1")))

	item := fake.items["m1"]
	assert.Equal(t, "2024-02-29T23:59:59.999999+0000", item[attrCreatedAt].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "1", item[attrVersion].(*types.AttributeValueMemberN).Value)
	assert.JSONEq(t, `{"team":"ml","epoch":12}`, item[attrTags].(*types.AttributeValueMemberS).Value)
}

func TestModelRecordRepo_OmitsNullAttributes(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewFromClient(fake, "model-table")

	record := sampleRecord("m1")
	record.Description = nil
	record.Tags = nil
	require.NoError(t, repo.Create(context.Background(), record))

	_, hasDesc := fake.items["m1"][attrDescription]
	_, hasTags := fake.items["m1"][attrTags]
	assert.False(t, hasDesc)
	assert.False(t, hasTags)

	got, ok, err := repo.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Tags)
}

func TestModelRecordRepo_UpdateDelete(t *testing.T) {
	repo := NewFromClient(newFakeDynamo(), "model-table")
	ctx := context.Background()

	record := sampleRecord("m1")
	ok, err := repo.Update(ctx, record)
	require.NoError(t, err)
	assert.False(t, ok, "update must not create")

	require.NoError(t, repo.Create(ctx, record))
	record.Name = "v2"
	ok, err = repo.Update(ctx, record)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, ok, err := repo.Delete(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", deleted.Name)

	_, ok, err = repo.Delete(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModelRecordRepo_List(t *testing.T) {
	repo := NewFromClient(newFakeDynamo(), "model-table")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, sampleRecord(id)))
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestModelRecordRepo_ListFailsOnUnreadableItem(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewFromClient(fake, "model-table")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRecord("good")))
	fake.items["broken"] = map[string]types.AttributeValue{
		attrModelID: &types.AttributeValueMemberS{Value: "broken"},
		attrName:    &types.AttributeValueMemberN{Value: "42"},
	}

	records, err := repo.List(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attribute name")
	assert.Nil(t, records)
}

func TestModelRecordRepo_ErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException"}, domain.ErrAccessDenied},
		{"bad key", &smithy.GenericAPIError{Code: "UnrecognizedClientException"}, domain.ErrAccessDenied},
		{"throttled", &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}, domain.ErrStorageUnavailable},
		{"missing table", &types.ResourceNotFoundException{Message: aws.String("no table")}, domain.ErrStorageUnavailable},
		{"network", errors.New("dial tcp: i/o timeout"), domain.ErrStorageUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeDynamo()
			fake.err = tc.err
			repo := NewFromClient(fake, "model-table")

			_, _, err := repo.GetByID(context.Background(), "m1")
			assert.ErrorIs(t, err, tc.want)

			_, err = repo.List(context.Background())
			assert.ErrorIs(t, err, tc.want)

			assert.ErrorIs(t, repo.Ping(context.Background()), tc.want)
		})
	}
}
