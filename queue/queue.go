package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

const defaultQueueKey = "videoflix:jobs"

// Publisher is the enqueue-only view of the queue, which is all most
// callers need.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// Queue is a FIFO job broker. Publish appends, Consume blocks until a
// job is available or the context ends.
type Queue interface {
	Publisher
	Consume(ctx context.Context) (Job, error)
	Close() error
}

// RedisQueue is a single-list FIFO on redis: LPUSH to publish, BRPOP to
// consume. Oldest job first.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to the broker named by a redis:// URL and
// verifies the connection with a ping.
func NewRedisQueue(ctx context.Context, queueURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(queueURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing queue url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to queue broker: %w", err)
	}
	return &RedisQueue{client: client, key: defaultQueueKey}, nil
}

func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	raw, err := job.marshal()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return xerrors.Transient(fmt.Errorf("error publishing job %s: %w", job.ID, err))
	}
	return nil
}

// Consume blocks until a job arrives. Waits in short slices so that
// context cancellation is honoured promptly.
func (q *RedisQueue) Consume(ctx context.Context) (Job, error) {
	for {
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, xerrors.Cancelled(ctx.Err())
			}
			return Job{}, xerrors.Transient(fmt.Errorf("error consuming from queue: %w", err))
		}
		// BRPOP returns [key, value].
		if len(res) != 2 {
			return Job{}, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
		}
		return unmarshalJob([]byte(res[1]))
	}
}

// Depth reports the number of jobs waiting on the queue.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, xerrors.Transient(fmt.Errorf("error reading queue depth: %w", err))
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
