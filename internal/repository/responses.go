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

// ErrScoreAlreadySet means the stage's score slot was no longer uncaptured.
var ErrScoreAlreadySet = fmt.Errorf("repository: stage score already recorded")

func scoreAttr(stage int) string {
	return "Score" + strconv.Itoa(stage)
}

// RecordScore writes the reply value for one stage. The slot must still hold
// the uncaptured placeholder; a slot is written at most once.
func (c *Client) RecordScore(ctx context.Context, subjectID string, stage, score int) error {
	attr := scoreAttr(stage)
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tables.Responses),
		Key: map[string]types.AttributeValue{
			"SubjectId": &types.AttributeValueMemberS{Value: subjectID},
		},
		UpdateExpression:    aws.String("SET #score = :score"),
		ConditionExpression: aws.String("attribute_exists(SubjectId) AND #score = :uncaptured"),
		ExpressionAttributeNames: map[string]string{
			"#score": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":score":      &types.AttributeValueMemberN{Value: strconv.Itoa(score)},
			":uncaptured": &types.AttributeValueMemberS{Value: domain.ScoreUncaptured},
		},
	})
	if err != nil {
		if conditionFailed(err) {
			return ErrScoreAlreadySet
		}
		return fmt.Errorf("repository: RecordScore: %w", err)
	}
	return nil
}

// GetResponse loads the response record for a subject.
func (c *Client) GetResponse(ctx context.Context, subjectID string, stages int) (domain.ResponseRecord, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tables.Responses),
		Key: map[string]types.AttributeValue{
			"SubjectId": &types.AttributeValueMemberS{Value: subjectID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ResponseRecord{}, fmt.Errorf("repository: GetResponse: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ResponseRecord{}, fmt.Errorf("repository: GetResponse: no record for subject %q", subjectID)
	}
	return itemToResponse(out.Item, stages)
}

func newResponseItem(subject domain.Subject, stages int, createdAt int64) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"SubjectId":         &types.AttributeValueMemberS{Value: subject.ID},
		"DestinationNumber": &types.AttributeValueMemberS{Value: subject.Phone},
		"CreatedAt":         &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAt, 10)},
	}
	for stage := 1; stage <= stages; stage++ {
		item[scoreAttr(stage)] = &types.AttributeValueMemberS{Value: domain.ScoreUncaptured}
	}
	return item
}

func itemToResponse(item map[string]types.AttributeValue, stages int) (domain.ResponseRecord, error) {
	subjectID, err := strAttr(item, "SubjectId")
	if err != nil {
		return domain.ResponseRecord{}, err
	}
	destination, err := strAttr(item, "DestinationNumber")
	if err != nil {
		return domain.ResponseRecord{}, err
	}
	createdAt, err := intAttr(item, "CreatedAt")
	if err != nil {
		return domain.ResponseRecord{}, err
	}

	record := domain.ResponseRecord{
		SubjectID:   subjectID,
		Destination: destination,
		Scores:      make([]string, stages),
		CreatedAt:   int64(createdAt),
	}
	for stage := 1; stage <= stages; stage++ {
		switch v := item[scoreAttr(stage)].(type) {
		case *types.AttributeValueMemberS:
			record.Scores[stage-1] = v.Value
		case *types.AttributeValueMemberN:
			record.Scores[stage-1] = v.Value
		case nil:
			record.Scores[stage-1] = domain.ScoreUncaptured
		default:
			return domain.ResponseRecord{}, fmt.Errorf("repository: attribute %q has unexpected type", scoreAttr(stage))
		}
	}
	return record, nil
}
