package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"time"

	"gridlearn/reinforcement"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const defaultLockExpiry = 10 * time.Second

// RedisStore keeps the encoded table as a single string value. Saves take a redsync lock on
// the key so that trainers sharing a checkpoint never interleave writes.
type RedisStore struct {
	client *redis.Client
	key    string
	locker *redsync.Redsync
	expiry time.Duration
}

// NewRedisStore returns a store for key on client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	pool := goredis.NewPool(client)
	return &RedisStore{
		client: client,
		key:    key,
		locker: redsync.New(pool),
		expiry: defaultLockExpiry,
	}
}

func (rs *RedisStore) String() string { return "redis:" + rs.key }

func (rs *RedisStore) Exists(ctx context.Context) (bool, error) {
	n, err := rs.client.Exists(ctx, rs.key).Result()
	if err != nil {
		return false, rs.wrap("exists", err)
	}
	return n > 0, nil
}

func (rs *RedisStore) Save(ctx context.Context, table *reinforcement.QTable) error {
	var buf bytes.Buffer
	if err := table.Encode(&buf); err != nil {
		return rs.wrap("save", err)
	}

	mutex := rs.locker.NewMutex(rs.key+":lock", redsync.WithExpiry(rs.expiry))
	if err := mutex.LockContext(ctx); err != nil {
		return rs.wrap("save", err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(ctx)
	}()

	if err := rs.client.Set(ctx, rs.key, buf.Bytes(), 0).Err(); err != nil {
		return rs.wrap("save", err)
	}
	return nil
}

func (rs *RedisStore) Load(ctx context.Context, table *reinforcement.QTable) error {
	data, err := rs.client.Get(ctx, rs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return rs.wrap("load", ErrNotFound)
	}
	if err != nil {
		return rs.wrap("load", err)
	}
	if err = table.Decode(bytes.NewReader(data)); err != nil {
		return rs.wrap("load", err)
	}
	return nil
}

func (rs *RedisStore) wrap(op string, err error) error {
	return &reinforcement.PersistenceError{Op: op, Path: rs.String(), Err: err}
}
