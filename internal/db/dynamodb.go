package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/utils"
)

const (
	MAX_BATCH_WRITE = 25
	MAX_RETRIES     = 3
	RETRY_BACKOFF   = 500 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client the recorder uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// PredictionItem is one row of the predictions table, keyed by analysis ID
// and review index.
type PredictionItem struct {
	AnalysisID  string `dynamodbav:"analysis_id"`
	ReviewIndex int    `dynamodbav:"review_index"`
	Prediction  int    `dynamodbav:"prediction"`
	Label       string `dynamodbav:"label"`
	CreatedAt   int64  `dynamodbav:"created_at"`
}

type DynamoRecorder struct {
	client           DynamoAPI
	analysesTable    string
	predictionsTable string
	backoff          time.Duration
}

func NewDynamoRecorder(client DynamoAPI, analysesTable, predictionsTable string) *DynamoRecorder {
	return &DynamoRecorder{
		client:           client,
		analysesTable:    analysesTable,
		predictionsTable: predictionsTable,
		backoff:          RETRY_BACKOFF,
	}
}

func (d *DynamoRecorder) Name() string { return "dynamodb" }

func (d *DynamoRecorder) Close() error { return nil }

// Record stores the summary item first, then the per-review predictions.
func (d *DynamoRecorder) Record(ctx context.Context, rec models.AnalysisRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to marshal analysis: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.analysesTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("[DynamoDB] failed to put analysis %s: %w", rec.AnalysisID, err)
	}

	if err := d.storePredictions(ctx, rec); err != nil {
		return err
	}

	slog.Debug("[DynamoDB] Stored analysis",
		slog.String("analysis_id", rec.AnalysisID),
		slog.Int("predictions", len(rec.Predictions)))
	return nil
}

func (d *DynamoRecorder) storePredictions(ctx context.Context, rec models.AnalysisRecord) error {
	writeRequests := make([]types.WriteRequest, 0, len(rec.Predictions))
	for i, p := range rec.Predictions {
		item, err := attributevalue.MarshalMap(PredictionItem{
			AnalysisID:  rec.AnalysisID,
			ReviewIndex: i,
			Prediction:  p,
			Label:       models.LabelName(p),
			CreatedAt:   rec.CreatedAt.Unix(),
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] failed to marshal prediction %d: %w", i, err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for _, batch := range utils.Chunk(writeRequests, MAX_BATCH_WRITE) {
		if err := ctx.Err(); err != nil {
			slog.Warn("[DynamoDB] context canceled")
			return err
		}
		if err := d.batchWrite(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// batchWrite writes one batch and retries unprocessed items with exponential
// backoff.
func (d *DynamoRecorder) batchWrite(ctx context.Context, batch []types.WriteRequest) error {
	out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			d.predictionsTable: batch,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to batch write predictions: %w", err)
	}

	retryCount := 0
	backoff := d.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < MAX_RETRIES {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[d.predictionsTable])))

		out, err = d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[d.predictionsTable]); remaining > 0 {
		return fmt.Errorf("[DynamoDB] %d predictions not written after %d retries", remaining, MAX_RETRIES)
	}
	return nil
}
