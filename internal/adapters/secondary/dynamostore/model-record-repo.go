// Package dynamostore stores model records in a DynamoDB table keyed by
// model_id. Timestamps are stored as UTC strings with microsecond
// precision, tags as a JSON string and version as a number.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

const timeLayout = "2006-01-02T15:04:05.000000-0700"

const (
	attrModelID       = "model_id"
	attrName          = "name"
	attrDescription   = "description"
	attrTags          = "tags"
	attrCreatedAt     = "created_at"
	attrLastUpdatedAt = "last_updated_at"
	attrVersion       = "version"
)

// API is the subset of the DynamoDB client used by the repository.
type API interface {
	dynamodb.ScanAPIClient

	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type modelRecordRepo struct {
	client API
	table  string
}

// NewFromConfig creates a repository for table using an SDK client built
// from awsCfg.
func NewFromConfig(awsCfg aws.Config, table string) output.ModelRecordRepository {
	return NewFromClient(dynamodb.NewFromConfig(awsCfg), table)
}

func NewFromClient(client API, table string) output.ModelRecordRepository {
	return &modelRecordRepo{client: client, table: table}
}

func (r *modelRecordRepo) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrModelID: &types.AttributeValueMemberS{Value: id},
	}
}

func (r *modelRecordRepo) GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, classify("get model record", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	record, err := unmarshalRecord(out.Item)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *modelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	item, err := marshalRecord(record)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(model_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrModelAlreadyExists
		}
		return classify("create model record", err)
	}
	log.WithFields(log.Fields{"table": r.table, "model_id": record.ModelID}).Debug("model record item written")
	return nil
}

// Update replaces the item only while it still exists.
func (r *modelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) (bool, error) {
	item, err := marshalRecord(record)
	if err != nil {
		return false, err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(model_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, classify("update model record", err)
	}
	log.WithFields(log.Fields{"table": r.table, "model_id": record.ModelID}).Debug("model record item replaced")
	return true, nil
}

func (r *modelRecordRepo) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.table),
		Key:          r.key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, false, classify("delete model record", err)
	}
	if len(out.Attributes) == 0 {
		return nil, false, nil
	}

	record, err := unmarshalRecord(out.Attributes)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (r *modelRecordRepo) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	records := []*domain.ModelRecord{}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:      aws.String(r.table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("scan model records", err)
		}
		for _, item := range page.Items {
			record, err := unmarshalRecord(item)
			if err != nil {
				return nil, fmt.Errorf("scan model records: decode item: %w", err)
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func (r *modelRecordRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	if err != nil {
		return classify("describe table", err)
	}
	return nil
}

func marshalRecord(record *domain.ModelRecord) (map[string]types.AttributeValue, error) {
	item := map[string]types.AttributeValue{
		attrModelID:       &types.AttributeValueMemberS{Value: record.ModelID},
		attrName:          &types.AttributeValueMemberS{Value: record.Name},
		attrCreatedAt:     &types.AttributeValueMemberS{Value: record.CreatedAt.UTC().Format(timeLayout)},
		attrLastUpdatedAt: &types.AttributeValueMemberS{Value: record.LastUpdatedAt.UTC().Format(timeLayout)},
		attrVersion:       &types.AttributeValueMemberN{Value: strconv.Itoa(record.Version)},
	}
	if record.Description != nil {
		item[attrDescription] = &types.AttributeValueMemberS{Value: *record.Description}
	}

	tags, err := domain.EncodeTags(record.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	if tags != nil {
		item[attrTags] = &types.AttributeValueMemberS{Value: string(tags)}
	}
	return item, nil
}

func unmarshalRecord(item map[string]types.AttributeValue) (*domain.ModelRecord, error) {
	record := &domain.ModelRecord{Version: domain.DefaultModelVersion}

	var err error
	if record.ModelID, err = stringAttr(item, attrModelID); err != nil {
		return nil, err
	}
	if record.Name, err = stringAttr(item, attrName); err != nil {
		return nil, err
	}
	if _, ok := item[attrDescription]; ok {
		d, err := stringAttr(item, attrDescription)
		if err != nil {
			return nil, err
		}
		record.Description = &d
	}
	if _, ok := item[attrTags]; ok {
		raw, err := stringAttr(item, attrTags)
		if err != nil {
			return nil, err
		}
		if record.Tags, err = domain.DecodeTags([]byte(raw)); err != nil {
			return nil, err
		}
	}
	if record.CreatedAt, err = timeAttr(item, attrCreatedAt); err != nil {
		return nil, err
	}
	if record.LastUpdatedAt, err = timeAttr(item, attrLastUpdatedAt); err != nil {
		return nil, err
	}
	if v, ok := item[attrVersion].(*types.AttributeValueMemberN); ok {
		if record.Version, err = strconv.Atoi(v.Value); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", attrVersion, err)
		}
	}
	return record, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %s: missing or not a string", name)
	}
	return v.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, name string) (time.Time, error) {
	s, err := stringAttr(item, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("attribute %s: %w", name, err)
	}
	return t.UTC(), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

var accessDeniedCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"InvalidSignatureException":   true,
	"ExpiredTokenException":       true,
	"MissingAuthenticationToken":  true,
}

// classify maps DynamoDB API error codes onto the storage error classes.
// Anything unrecognised, including a missing table, means the backend is
// unavailable.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && accessDeniedCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
