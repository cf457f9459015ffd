package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoteldex/hotel-admin/internal/model"
)

const (
	taskQueueKey    = "export:tasks"
	statusKeyPrefix = "export:status:"
	statusTTL       = 24 * time.Hour
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb}, nil
}

func (r *RedisCache) PushExportTask(ctx context.Context, task model.ExportTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal export task: %w", err)
	}
	return r.client.LPush(ctx, taskQueueKey, payload).Err()
}

func (r *RedisCache) PopExportTask(ctx context.Context, timeout time.Duration) (*model.ExportTask, error) {
	res, err := r.client.BRPop(ctx, timeout, taskQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}

	var task model.ExportTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("unmarshal export task: %w", err)
	}
	return &task, nil
}

func (r *RedisCache) SetJobStatus(ctx context.Context, jobID string, state model.JobState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	return r.client.Set(ctx, statusKeyPrefix+jobID, payload, statusTTL).Err()
}

func (r *RedisCache) GetJobStatus(ctx context.Context, jobID string) (*model.JobState, error) {
	val, err := r.client.Get(ctx, statusKeyPrefix+jobID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var state model.JobState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("unmarshal job state: %w", err)
	}
	return &state, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
