package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRedisTimeout = 2 * time.Second

// RedisStore keeps the credentials of one backend in a redis hash so that
// several short-lived processes on a host can share one login.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
}

// NewRedisStore stores credentials under "<prefix>:credentials:<host>".
func NewRedisStore(client redis.UniversalClient, prefix string, host string) *RedisStore {
	if len(prefix) == 0 {
		prefix = "lumen"
	}
	return &RedisStore{
		client:  client,
		key:     fmt.Sprintf("%s:credentials:%s", prefix, host),
		timeout: defaultRedisTimeout,
	}
}

func (r *RedisStore) Key() string {
	return r.key
}

func (r *RedisStore) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisStore) Get(name string) (string, bool) {
	ctx, cancel := r.context()
	defer cancel()

	value, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"key":  r.key,
			"name": name,
		}).Warnln("Credential lookup failed, treating as absent")
		return "", false
	}
	if len(value) == 0 {
		return "", false
	}
	return value, true
}

func (r *RedisStore) Set(name string, value string, _ Options) error {
	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.HSet(ctx, r.key, name, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Remove(name string) error {
	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.HDel(ctx, r.key, name).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Clear() error {
	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.HDel(ctx, r.key, models.SessionArtefacts()...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
