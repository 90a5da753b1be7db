package policies

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the same binary layouts as FileStore under <prefix>:q_table and <prefix>:rewards_history
type RedisStore struct {
	client  *redis.Client
	ctx     context.Context
	prefix  string
	states  int
	actions int
}

var _ Store = &RedisStore{}

func NewRedisStore(ctx context.Context, addr, prefix string, states, actions int) *RedisStore {
	return &RedisStore{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		ctx:     ctx,
		prefix:  prefix,
		states:  states,
		actions: actions,
	}
}

func (r *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *RedisStore) get(name string) ([]byte, bool, error) {
	data, err := r.client.Get(r.ctx, r.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisStore) LoadTable() (*QTable, error) {
	data, ok, err := r.get(tableName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	q := NewQTable(r.states, r.actions)
	if err := q.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", r.key(tableName), err)
	}
	return q, nil
}

func (r *RedisStore) LoadHistory() ([]float64, error) {
	data, ok, err := r.get(historyName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []float64{}, nil
	}
	return decodeHistory(data)
}

func (r *RedisStore) SaveTable(q *QTable) error {
	data, err := q.MarshalBinary()
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, r.key(tableName), data, 0).Err()
}

func (r *RedisStore) SaveHistory(history []float64) error {
	data, err := encodeHistory(history)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, r.key(historyName), data, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
