package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordTTL bounds how long models and runs survive in redis; the
// backend is a session peer, not an archive.
const recordTTL = 24 * time.Hour

// RedisStore keeps models and runs in redis so restarts and multiple
// backend replicas share one registry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisStore) RegisterModel(ctx context.Context, model Model) error {
	raw, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("trainer: marshal model: %w", err)
	}
	return r.client.Set(ctx, "model:"+model.ID, raw, recordTTL).Err()
}

func (r *RedisStore) GetModel(ctx context.Context, id string) (Model, error) {
	raw, err := r.client.Get(ctx, "model:"+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Model{}, ErrModelNotFound
	}
	if err != nil {
		return Model{}, err
	}
	var model Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return Model{}, fmt.Errorf("trainer: unmarshal model: %w", err)
	}
	return model, nil
}

func (r *RedisStore) SaveRun(ctx context.Context, run Run) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("trainer: marshal run: %w", err)
	}
	return r.client.Set(ctx, "run:"+run.ID, raw, recordTTL).Err()
}

func (r *RedisStore) GetRun(ctx context.Context, id string) (Run, error) {
	raw, err := r.client.Get(ctx, "run:"+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return Run{}, fmt.Errorf("trainer: unmarshal run: %w", err)
	}
	return run, nil
}
