package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

var (
	valkeyInstance *ValkeyClient
	valkeyOnce     sync.Once
)

type ValkeyClient struct {
	Client valkey.Client
	mu     sync.Mutex
}

const (
	VALKEY_PROCESSED_POSTS_KEY = "posts:processed"
	VALKEY_PROCESSED_TTL       = 86400 * 7
	VALKEY_MAX_RETRIES         = 3
)

func newValkeyConnection() (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{os.Getenv("VALKEY_INIT_ADDRESS")},
		Password:         os.Getenv("VALKEY_PASSWORD"),
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if os.Getenv("VALKEY_TLS") == "true" {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if c := client.Do(ctx, client.B().Ping().Build()); c.Error() != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", c.Error())
	}

	return client, nil
}

func InitValkey() *ValkeyClient {
	valkeyOnce.Do(func() {
		client, err := newValkeyConnection()
		if err != nil {
			panic(err)
		}

		slog.Info("[ValkeyClient] Successfully connected to valkey")
		valkeyInstance = &ValkeyClient{Client: client}
	})
	return valkeyInstance
}

func (vc *ValkeyClient) recreateClient() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[ValkeyClient] Recreate failed and was recovered from panic",
				slog.Any("panic", r))
		}
	}()

	vc.mu.Lock()
	defer vc.mu.Unlock()
	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	vc.Client.Close()

	client, err := newValkeyConnection()
	if err != nil {
		panic(err)
	}

	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
	vc.Client = client
}

func CloseValkey() {
	if valkeyInstance != nil {
		valkeyInstance.Client.Close()
	}
}

// MarkProcessed records a post ID in the dedupe set so reruns over the same
// input skip it. The set carries a TTL so the key does not grow unbounded.
func (vc *ValkeyClient) MarkProcessed(ctx context.Context, postID string) error {
	completed := []valkey.Completed{
		vc.Client.B().Sadd().Key(VALKEY_PROCESSED_POSTS_KEY).Member(postID).Build(),
		vc.Client.B().Expire().Key(VALKEY_PROCESSED_POSTS_KEY).Seconds(VALKEY_PROCESSED_TTL).Build(),
	}

	responses := vc.DoMultiWithRetry(ctx, completed, VALKEY_MAX_RETRIES)
	for _, res := range responses {
		if err := res.Error(); err != nil {
			return err
		}
	}

	return nil
}

// IsPostProcessed errs on the side of reprocessing: any lookup failure
// reports false, since graph upserts are idempotent anyway.
func (vc *ValkeyClient) IsPostProcessed(ctx context.Context, postID string) bool {
	res := vc.DoWithRetry(ctx,
		vc.Client.B().Sismember().Key(VALKEY_PROCESSED_POSTS_KEY).Member(postID).Build(),
		VALKEY_MAX_RETRIES)

	if err := res.Error(); isConnectionError(err) {
		vc.recreateClient()
	}

	ok, err := res.AsBool()
	if err != nil {
		return false
	}

	return ok
}

func (vc *ValkeyClient) DoMultiWithRetry(ctx context.Context, completed []valkey.Completed, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult

	for i := 0; i < retries; i++ {
		results = vc.Client.DoMulti(ctx, completed...)
		hasErr := false
		for _, r := range results {
			if r.Error() != nil {
				hasErr = true
				slog.Warn("[ValkeyClient] Do Multi failed",
					slog.Int("attempt", i+1),
					slog.String("error", r.Error().Error()))
				if isConnectionError(r.Error()) {
					vc.recreateClient()
				}
				break
			}
		}
		if !hasErr {
			break
		}
		time.Sleep(time.Millisecond * 250)
	}

	return results
}

func (vc *ValkeyClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, completed)
		if result.Error() == nil {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		time.Sleep(250 * time.Millisecond)
	}

	return result
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
