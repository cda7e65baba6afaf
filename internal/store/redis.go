package store

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "smartwallet"

// RedisStore keeps each partition in a Redis hash named "<prefix>:<partition>".
// Multi-record writes run inside MULTI/EXEC.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix defaults to "smartwallet".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Open verifies connectivity and registers the partitions.
func (s *RedisStore) Open(ctx context.Context) error {
	if s.client == nil {
		return unavailable("redis open", errNotOpen)
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	members := make([]any, 0, len(Partitions))
	for _, p := range Partitions {
		members = append(members, string(p))
	}
	if err := s.client.SAdd(ctx, s.prefix+":partitions", members...).Err(); err != nil {
		return unavailable("redis register partitions", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, partition Partition, key string) (Record, error) {
	if err := checkPartition(partition); err != nil {
		return Record{}, err
	}
	data, err := s.client.HGet(ctx, s.hashKey(partition), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, unavailable("redis hget", err)
	}
	return Record{Key: key, Data: data}, nil
}

func (s *RedisStore) GetAll(ctx context.Context, partition Partition) ([]Record, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	values, err := s.client.HGetAll(ctx, s.hashKey(partition)).Result()
	if err != nil {
		return nil, unavailable("redis hgetall", err)
	}
	records := make([]Record, 0, len(values))
	for key, data := range values {
		records = append(records, Record{Key: key, Data: []byte(data)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (s *RedisStore) Put(ctx context.Context, partition Partition, records ...Record) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	return s.Apply(ctx, opsFor(partition, records)...)
}

func (s *RedisStore) Apply(ctx context.Context, ops ...Op) error {
	if err := checkOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			pipe.HSet(ctx, s.hashKey(op.Partition), op.Record.Key, op.Record.Data)
		}
		return nil
	})
	if err != nil {
		return unavailable("redis multi hset", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, partitions ...Partition) error {
	keys := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if err := checkPartition(p); err != nil {
			return err
		}
		keys = append(keys, s.hashKey(p))
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("redis del", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) hashKey(p Partition) string {
	return s.prefix + ":" + string(p)
}
