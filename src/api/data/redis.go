package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix = "nonce:"

	// StreamEvents carries every successful mutation (escrow
	// lifecycle, attestations, task outcomes) to the Discord bot.
	StreamEvents = "agentledger.events"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func SetNonce(ctx context.Context, rdb *redis.Client, addr, nonce string) error {
	return rdb.Set(ctx, noncePrefix+addr, nonce, 5*time.Minute).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, addr string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// PublishEvent appends a mutation event to the event stream. Delivery
// is best-effort; the engines never depend on it.
func PublishEvent(ctx context.Context, rdb *redis.Client, kind string, payload map[string]interface{}) error {
	values := map[string]interface{}{"kind": kind, "time": time.Now().Unix()}
	for k, v := range payload {
		values[k] = v
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		Values: values,
	}).Result()
	return err
}
