package leader

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-platform/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "auction_leader"

const releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

const extendScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("EXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `

// RedisLeaderElection holds a TTL lock in Redis. The holder refreshes it at a
// third of the TTL until it is released or taken over.
type RedisLeaderElection struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	log    logger.Logger

	mu        sync.Mutex
	heartbeat chan struct{}
}

func NewRedisLeaderElection(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		key:    DefaultKey,
		ttl:    ttl,
		log:    log,
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if !acquired {
		// Still ours from a previous round.
		return r.IsLeader(ctx, instanceID)
	}

	r.log.Info("Acquired leadership", "instance_id", instanceID)
	r.startHeartbeat(instanceID)
	return true, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat()

	_, err := r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Result()
	return err
}

// extend pushes the lock expiry forward while instanceID still holds it.
func (r *RedisLeaderElection) extend(ctx context.Context, instanceID string) (bool, error) {
	n, err := r.client.Eval(ctx, extendScript, []string{r.key},
		instanceID, int(r.ttl.Seconds())).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.heartbeat != nil {
		close(r.heartbeat)
	}
	stop := make(chan struct{})
	r.heartbeat = stop
	go r.maintainLeadership(instanceID, stop)
}

func (r *RedisLeaderElection) stopHeartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.heartbeat != nil {
		close(r.heartbeat)
		r.heartbeat = nil
	}
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		held, err := r.extend(ctx, instanceID)
		cancel()

		if err != nil || !held {
			r.log.Warn("Lost leadership", "instance_id", instanceID, "error", err)
			return
		}
	}
}
