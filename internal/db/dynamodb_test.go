package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/reviewscope/internal/models"
)

type fakeDynamo struct {
	puts        []*dynamodb.PutItemInput
	batches     []*dynamodb.BatchWriteItemInput
	unprocessed int // number of calls that hand back their first item as unprocessed
	putErr      error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batches = append(f.batches, in)
	out := &dynamodb.BatchWriteItemOutput{}
	if f.unprocessed > 0 {
		f.unprocessed--
		for table, reqs := range in.RequestItems {
			out.UnprocessedItems = map[string][]types.WriteRequest{table: reqs[:1]}
		}
	}
	return out, nil
}

func testRecord(predictions int) models.AnalysisRecord {
	preds := make([]int, predictions)
	for i := range preds {
		preds[i] = i % 2
	}
	return models.AnalysisRecord{
		AnalysisID: "a-1",
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:     "http",
		ModelKind:  "linear",
		Summary: models.Summary{
			TotalReviews:   predictions,
			FakeReviews:    (predictions + 1) / 2,
			FakePercentage: 50,
			ProductStatus:  models.STATUS_FAKE,
		},
		Predictions: preds,
	}
}

func newTestDynamo(client DynamoAPI) *DynamoRecorder {
	r := NewDynamoRecorder(client, "Analyses", "Predictions")
	r.backoff = time.Millisecond
	return r
}

func TestDynamoRecordWritesSummaryAndChunks(t *testing.T) {
	fake := &fakeDynamo{}
	r := newTestDynamo(fake)

	require.NoError(t, r.Record(context.Background(), testRecord(30)))

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "Analyses", *fake.puts[0].TableName)

	var stored struct {
		AnalysisID    string `dynamodbav:"analysis_id"`
		TotalReviews  int    `dynamodbav:"total_reviews"`
		ProductStatus string `dynamodbav:"product_status"`
	}
	require.NoError(t, attributevalue.UnmarshalMap(fake.puts[0].Item, &stored))
	assert.Equal(t, "a-1", stored.AnalysisID)
	assert.Equal(t, 30, stored.TotalReviews)
	assert.Equal(t, models.STATUS_FAKE, stored.ProductStatus)
	assert.NotContains(t, fake.puts[0].Item, "predictions")

	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[0].RequestItems["Predictions"], 25)
	assert.Len(t, fake.batches[1].RequestItems["Predictions"], 5)

	var last PredictionItem
	require.NoError(t, attributevalue.UnmarshalMap(fake.batches[1].RequestItems["Predictions"][4].PutRequest.Item, &last))
	assert.Equal(t, PredictionItem{
		AnalysisID:  "a-1",
		ReviewIndex: 29,
		Prediction:  1,
		Label:       "genuine",
		CreatedAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
	}, last)
}

func TestDynamoRecordRetriesUnprocessed(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 2}
	r := newTestDynamo(fake)

	require.NoError(t, r.Record(context.Background(), testRecord(3)))
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[2].RequestItems["Predictions"], 1)
}

func TestDynamoRecordGivesUpAfterRetries(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 10}
	r := newTestDynamo(fake)

	err := r.Record(context.Background(), testRecord(3))
	assert.ErrorContains(t, err, "not written")
	assert.Len(t, fake.batches, 1+MAX_RETRIES)
}

func TestDynamoRecordStopsOnPutError(t *testing.T) {
	fake := &fakeDynamo{putErr: errors.New("ResourceNotFoundException")}
	r := newTestDynamo(fake)

	err := r.Record(context.Background(), testRecord(3))
	assert.ErrorContains(t, err, "ResourceNotFoundException")
	assert.Empty(t, fake.batches)
}
