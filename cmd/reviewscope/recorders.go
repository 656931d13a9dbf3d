package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spacesedan/reviewscope/config"
	"github.com/spacesedan/reviewscope/internal/clients"
	"github.com/spacesedan/reviewscope/internal/clients/kafka_client"
	"github.com/spacesedan/reviewscope/internal/db"
	"github.com/spacesedan/reviewscope/internal/reporting"
)

// buildRecorders opens every sink enabled in rc. A sink that is configured
// but cannot be opened is a startup error.
func buildRecorders(ctx context.Context, rc config.RecordingConfig) (*reporting.Multi, error) {
	multi := reporting.NewMulti()
	fail := func(err error) (*reporting.Multi, error) {
		return nil, errors.Join(err, multi.Close())
	}

	if rc.SQLitePath != "" {
		s, err := db.NewSQLiteRecorder(rc.SQLitePath)
		if err != nil {
			return fail(err)
		}
		multi.Add(s)
	}

	if rc.DynamoDB {
		client, err := clients.NewDynamoDBClient(ctx, rc.AWSRegion, rc.AWSEndpoint)
		if err != nil {
			return fail(err)
		}
		multi.Add(db.NewDynamoRecorder(client, rc.AnalysesTable, rc.PredictionsTable))
	}

	if rc.KafkaBroker != "" {
		k, err := kafka_client.NewRecorder(kafka_client.KafkaConfig{
			Broker: rc.KafkaBroker,
			Topic:  rc.KafkaTopic,
		})
		if err != nil {
			return fail(err)
		}
		multi.Add(k)
	}

	if rc.ValkeyAddress != "" {
		v, err := clients.NewValkeyRecorder(clients.ValkeyOptions{
			Address:     rc.ValkeyAddress,
			Password:    rc.ValkeyPassword,
			TLS:         rc.ValkeyTLS,
			RecentLimit: rc.ValkeyRecentLimit,
		})
		if err != nil {
			return fail(err)
		}
		multi.Add(v)
	}

	if multi.Len() > 0 {
		slog.Info("[Main] Recording analyses", slog.Int("recorders", multi.Len()))
	}
	return multi, nil
}
