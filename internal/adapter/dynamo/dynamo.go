// Package dynamo implements the note and taxonomy stores on Amazon DynamoDB.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jun/notesync/internal/adapter"
)

// Client is the subset of *dynamodb.Client methods used by the stores.
type Client interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ownedCondition guards writes so that only an existing note of the caller is touched.
const ownedCondition = "attribute_exists(#id) AND #user_id = :uid"

// NoteStore implements adapter.NoteStore.
// The table is keyed by "id"; userIndex is a global secondary index with partition key "user_id".
type NoteStore struct {
	client    Client
	tableName string
	userIndex string
}

// NewNoteStore creates a NoteStore.
func NewNoteStore(client Client, tableName, userIndex string) *NoteStore {
	return &NoteStore{client: client, tableName: tableName, userIndex: userIndex}
}

// ListNotes queries the user index, following pagination until every item is read.
func (s *NoteStore) ListNotes(ctx context.Context, userID string) ([]adapter.NoteRecord, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.userIndex),
		KeyConditionExpression: aws.String("#user_id = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#user_id": "user_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})

	var records []adapter.NoteRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query notes: %w", err)
		}
		var items []adapter.NoteRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
		records = append(records, items...)
	}
	return records, nil
}

// CreateNote writes a new item under a freshly generated ID.
func (s *NoteStore) CreateNote(ctx context.Context, rec adapter.NoteRecord) (string, error) {
	rec.ID = uuid.New().String()
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal note: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to put note: %w", err)
	}
	return rec.ID, nil
}

// UpdateNote sets the provided fields and removes cleared ones in a single conditional update.
func (s *NoteStore) UpdateNote(ctx context.Context, userID, id string, update adapter.NoteUpdate) error {
	expr, names, values, err := buildUpdate(update)
	if err != nil {
		return err
	}
	names["#id"] = "id"
	names["#user_id"] = "user_id"
	values[":uid"] = &types.AttributeValueMemberS{Value: userID}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(ownedCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return mapConditionErr(err, "failed to update note")
	}
	return nil
}

// DeleteNote removes the item if the caller owns it.
func (s *NoteStore) DeleteNote(ctx context.Context, userID, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String(ownedCondition),
		ExpressionAttributeNames: map[string]string{
			"#id":      "id",
			"#user_id": "user_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return mapConditionErr(err, "failed to delete note")
	}
	return nil
}

// buildUpdate renders the update expression. Fields appear in a fixed order
// (updated_at, title, content, folder, tags) so the expression is deterministic.
func buildUpdate(update adapter.NoteUpdate) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{"#updated_at": "updated_at"}
	values := map[string]types.AttributeValue{
		":updated_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(update.UpdatedAt), 10)},
	}
	sets := []string{"#updated_at = :updated_at"}
	var removes []string

	p := update.Patch
	if p.Title != nil {
		names["#title"] = "title"
		values[":title"] = &types.AttributeValueMemberS{Value: *p.Title}
		sets = append(sets, "#title = :title")
	}
	if p.Content != nil {
		names["#content"] = "content"
		values[":content"] = &types.AttributeValueMemberS{Value: *p.Content}
		sets = append(sets, "#content = :content")
	}
	if p.Folder != nil {
		names["#folder"] = "folder"
		if *p.Folder == "" {
			removes = append(removes, "#folder")
		} else {
			values[":folder"] = &types.AttributeValueMemberS{Value: *p.Folder}
			sets = append(sets, "#folder = :folder")
		}
	}
	if p.Tags != nil {
		names["#tags"] = "tags"
		if len(*p.Tags) == 0 {
			removes = append(removes, "#tags")
		} else {
			av, err := attributevalue.Marshal(*p.Tags)
			if err != nil {
				return "", nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
			}
			values[":tags"] = av
			sets = append(sets, "#tags = :tags")
		}
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		expr += " REMOVE " + strings.Join(removes, ", ")
	}
	return expr, names, values, nil
}

func mapConditionErr(err error, msg string) error {
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return adapter.ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// TaxonomyStore implements adapter.TaxonomyStore on a table keyed by "user_id".
type TaxonomyStore struct {
	client    Client
	tableName string
}

// NewTaxonomyStore creates a TaxonomyStore.
func NewTaxonomyStore(client Client, tableName string) *TaxonomyStore {
	return &TaxonomyStore{client: client, tableName: tableName}
}

func (s *TaxonomyStore) GetTaxonomy(ctx context.Context, userID string) (*adapter.TaxonomyRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get taxonomy: %w", err)
	}
	if out.Item == nil {
		return nil, adapter.ErrNotFound
	}

	var rec adapter.TaxonomyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taxonomy: %w", err)
	}
	return &rec, nil
}

func (s *TaxonomyStore) PutTaxonomy(ctx context.Context, rec adapter.TaxonomyRecord) error {
	// Empty lists are stored as empty lists so a cleared taxonomy does not fall back to defaults.
	if rec.Folders == nil {
		rec.Folders = []string{}
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal taxonomy: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put taxonomy: %w", err)
	}
	return nil
}
