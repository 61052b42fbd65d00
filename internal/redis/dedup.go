package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

const requestTTL = 24 * time.Hour

// MarkRequest records a client mutation request id. It returns true when the
// id is new; a false result means the mutation was already applied and a retry
// must not be applied again.
func (r *Redis) MarkRequest(ctx context.Context, requestID string) (bool, error) {
	key := "cart_req:" + requestID
	ok, err := r.Client.SetNX(ctx, key, 1, requestTTL).Result()
	return ok, err
}

// ReleaseRequest forgets a request id so the client can resubmit after a
// failed apply (the mutation never reached the store).
func (r *Redis) ReleaseRequest(ctx context.Context, requestID string) error {
	key := "cart_req:" + requestID
	_, err := r.Client.Del(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}
