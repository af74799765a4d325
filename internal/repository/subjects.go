package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"feedback-notifier/internal/domain"
)

// ErrAlreadyDispatched is returned by SaveDispatch when the subject was
// marked Sent by a concurrent pass between the caller's read and the write.
var ErrAlreadyDispatched = fmt.Errorf("repository: subject already dispatched")

// ListSubjects scans the full subjects table, following pagination.
func (c *Client) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var (
		subjects []domain.Subject
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.tables.Subjects),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ListSubjects scan: %w", err)
		}
		for _, item := range out.Items {
			subject, err := itemToSubject(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListSubjects unmarshal: %w", err)
			}
			subjects = append(subjects, subject)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return subjects, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// SaveDispatch records a successful initial send in one transaction: the
// subject flips to Sent, a response record is seeded with all stages
// uncaptured, and a stage-1 correlation entry is written. The subject update
// carries the NotSent guard so a racing pass loses cleanly.
func (c *Client) SaveDispatch(ctx context.Context, subject domain.Subject, messageID string, stages int) error {
	if messageID == "" {
		return fmt.Errorf("repository: SaveDispatch: message id is required")
	}
	if stages < 1 {
		return fmt.Errorf("repository: SaveDispatch: stages must be positive")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(c.tables.Subjects),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: subject.ID},
					},
					UpdateExpression:    aws.String("SET NotificationStatus = :status, MessageId = :messageId"),
					ConditionExpression: aws.String("attribute_not_exists(NotificationStatus) OR NotificationStatus <> :status"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":status":    &types.AttributeValueMemberS{Value: string(domain.StatusSent)},
						":messageId": &types.AttributeValueMemberS{Value: messageID},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tables.Responses),
					Item:                newResponseItem(subject, stages, time.Now().Unix()),
					ConditionExpression: aws.String("attribute_not_exists(SubjectId)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tables.Correlations),
					Item:                correlationItem(domain.CorrelationEntry{MessageID: messageID, SubjectID: subject.ID, Stage: 1}),
					ConditionExpression: aws.String("attribute_not_exists(MessageId)"),
				},
			},
		},
	})
	if err != nil {
		if conditionFailed(err) {
			return ErrAlreadyDispatched
		}
		return fmt.Errorf("repository: SaveDispatch: %w", err)
	}
	return nil
}

func itemToSubject(item map[string]types.AttributeValue) (domain.Subject, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Subject{}, err
	}
	phone, err := strAttr(item, "CustomerPhone")
	if err != nil {
		return domain.Subject{}, err
	}
	locale, _ := strAttr(item, "Language")           // allow empty, falls back later
	status, _ := strAttr(item, "NotificationStatus") // absent means never sent

	subject := domain.Subject{ID: id, Phone: phone, Locale: locale, Status: domain.StatusNotSent}
	if domain.DispatchStatus(status) == domain.StatusSent {
		subject.Status = domain.StatusSent
	}
	return subject, nil
}
