package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"feedback-notifier/internal/domain"
)

func TestRecordScore_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.RecordScore(context.Background(), "S1", 3, 4))
	require.Equal(t, "responses", *db.lastUpdIn.TableName)
	require.Equal(t, "SET #score = :score", *db.lastUpdIn.UpdateExpression)
	require.Equal(t, "Score3", db.lastUpdIn.ExpressionAttributeNames["#score"])
	require.Contains(t, *db.lastUpdIn.ConditionExpression, "#score = :uncaptured")
	require.Equal(t, &types.AttributeValueMemberN{Value: "4"}, db.lastUpdIn.ExpressionAttributeValues[":score"])
	require.Equal(t, &types.AttributeValueMemberS{Value: domain.ScoreUncaptured}, db.lastUpdIn.ExpressionAttributeValues[":uncaptured"])
}

func TestRecordScore_AlreadySet(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	c := mustNewClient(t, db)
	err := c.RecordScore(context.Background(), "S1", 1, 5)
	require.ErrorIs(t, err, ErrScoreAlreadySet)
}

func TestRecordScore_UpdateError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("boom")}
	c := mustNewClient(t, db)
	err := c.RecordScore(context.Background(), "S1", 1, 5)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrScoreAlreadySet)
}

func TestGetResponse_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"SubjectId":         &types.AttributeValueMemberS{Value: "S1"},
		"DestinationNumber": &types.AttributeValueMemberS{Value: "+15550001"},
		"CreatedAt":         &types.AttributeValueMemberN{Value: "1700000000"},
		"Score1":            &types.AttributeValueMemberN{Value: "4"},
		"Score2":            &types.AttributeValueMemberS{Value: domain.ScoreUncaptured},
	}}}
	c := mustNewClient(t, db)

	record, err := c.GetResponse(context.Background(), "S1", 2)
	require.NoError(t, err)
	require.Equal(t, domain.ResponseRecord{
		SubjectID:   "S1",
		Destination: "+15550001",
		Scores:      []string{"4", domain.ScoreUncaptured},
		CreatedAt:   1700000000,
	}, record)
}

func TestGetResponse_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, err := c.GetResponse(context.Background(), "S1", 4)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no record")
}
