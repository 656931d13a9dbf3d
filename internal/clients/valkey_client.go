package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/reporting"
)

type ValkeyOptions struct {
	Address     string
	Password    string
	TLS         bool
	RecentLimit int64
}

// ValkeyRecorder keeps the latest analyses in a capped Valkey list for
// dashboards to read.
type ValkeyRecorder struct {
	Client valkey.Client
	opts   ValkeyOptions
	mu     sync.Mutex
}

func NewValkeyRecorder(opts ValkeyOptions) (*ValkeyRecorder, error) {
	client, err := connectValkey(opts)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", opts.Address))
	return &ValkeyRecorder{Client: client, opts: opts}, nil
}

func connectValkey(opts ValkeyOptions) (valkey.Client, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyRecorder) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyRecorder) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyRecorder) Name() string { return "valkey" }

// Record pushes the analysis onto the recent list and trims the list to the
// configured length.
func (vc *ValkeyRecorder) Record(ctx context.Context, rec models.AnalysisRecord) error {
	payload, err := reporting.EncodeRecord(rec)
	if err != nil {
		return err
	}

	limit := vc.opts.RecentLimit
	err = vc.DoMultiWithRetry(ctx, func(b valkey.Builder) []valkey.Completed {
		return []valkey.Completed{
			b.Lpush().Key(VALKEY_RECENT_KEY).Element(payload).Build(),
			b.Ltrim().Key(VALKEY_RECENT_KEY).Start(0).Stop(limit - 1).Build(),
		}
	}, VALKEY_RETRIES)
	if err != nil {
		return err
	}

	slog.Debug("[ValkeyClient] Recorded analysis",
		slog.String("analysis_id", rec.AnalysisID))
	return nil
}

func (vc *ValkeyRecorder) Close() error {
	vc.client().Close()
	return nil
}

// DoMultiWithRetry runs the commands produced by build as one pipeline.
// Commands are recycled by the client once sent, so build is called again
// with the current client's builder on every attempt.
func (vc *ValkeyRecorder) DoMultiWithRetry(ctx context.Context, build func(valkey.Builder) []valkey.Completed, retries int) error {
	return retryValkey(ctx, retries, VALKEY_RETRY_DELAY, func(attempt int) error {
		client := vc.client()
		for _, r := range client.DoMulti(ctx, build(client.B())...) {
			if err := r.Error(); err != nil {
				slog.Warn("[ValkeyClient] Do Multi failed",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				if isConnectionError(err) {
					vc.recreateClient()
				}
				return err
			}
		}
		return nil
	})
}

// retryValkey calls do up to retries times, waiting delay between failed
// attempts. It returns the last error, or the context's error when ctx ends
// first.
func retryValkey(ctx context.Context, retries int, delay time.Duration, do func(attempt int) error) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = do(i + 1); err == nil {
			return nil
		}
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
