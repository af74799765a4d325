package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"feedback-notifier/internal/domain"
)

var (
	// ErrCorrelationNotFound means the message id has no tracked
	// conversation: either it was never issued by us or it has already
	// been consumed by an earlier reply.
	ErrCorrelationNotFound = fmt.Errorf("repository: correlation entry not found")

	// ErrCorrelationConsumed means a concurrent reply consumed the entry
	// between this caller's read and its consume attempt.
	ErrCorrelationConsumed = fmt.Errorf("repository: correlation entry already consumed")
)

// GetCorrelation resolves a transport message id to its conversation entry.
func (c *Client) GetCorrelation(ctx context.Context, messageID string) (domain.CorrelationEntry, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tables.Correlations),
		Key: map[string]types.AttributeValue{
			"MessageId": &types.AttributeValueMemberS{Value: messageID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.CorrelationEntry{}, fmt.Errorf("repository: GetCorrelation: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.CorrelationEntry{}, ErrCorrelationNotFound
	}
	return itemToCorrelation(out.Item)
}

// ConsumeCorrelation deletes the entry for messageID, failing with
// ErrCorrelationConsumed if it is already gone. Exactly one concurrent
// caller wins; this is the per-subject serialization point for replies.
func (c *Client) ConsumeCorrelation(ctx context.Context, messageID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tables.Correlations),
		Key: map[string]types.AttributeValue{
			"MessageId": &types.AttributeValueMemberS{Value: messageID},
		},
		ConditionExpression: aws.String("attribute_exists(MessageId)"),
	})
	if err != nil {
		if conditionFailed(err) {
			return ErrCorrelationConsumed
		}
		return fmt.Errorf("repository: ConsumeCorrelation: %w", err)
	}
	return nil
}

// PutCorrelation writes the entry for a freshly issued message id. Message
// ids are transport-issued and never reused, so an existing item is a bug.
func (c *Client) PutCorrelation(ctx context.Context, entry domain.CorrelationEntry) error {
	if entry.MessageID == "" || entry.SubjectID == "" {
		return fmt.Errorf("repository: PutCorrelation: message id and subject id are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tables.Correlations),
		Item:                correlationItem(entry),
		ConditionExpression: aws.String("attribute_not_exists(MessageId)"),
	})
	if err != nil {
		return fmt.Errorf("repository: PutCorrelation: %w", err)
	}
	return nil
}

func correlationItem(entry domain.CorrelationEntry) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"MessageId": &types.AttributeValueMemberS{Value: entry.MessageID},
		"SubjectId": &types.AttributeValueMemberS{Value: entry.SubjectID},
		"Stage":     &types.AttributeValueMemberN{Value: strconv.Itoa(entry.Stage)},
	}
}

func itemToCorrelation(item map[string]types.AttributeValue) (domain.CorrelationEntry, error) {
	messageID, err := strAttr(item, "MessageId")
	if err != nil {
		return domain.CorrelationEntry{}, err
	}
	subjectID, err := strAttr(item, "SubjectId")
	if err != nil {
		return domain.CorrelationEntry{}, err
	}
	stage, err := intAttr(item, "Stage")
	if err != nil {
		return domain.CorrelationEntry{}, err
	}
	return domain.CorrelationEntry{MessageID: messageID, SubjectID: subjectID, Stage: stage}, nil
}
