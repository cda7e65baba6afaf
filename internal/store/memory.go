package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a concurrency-safe in-memory store. It backs unit tests and is
// the session fallback when durable storage is unavailable.
type Memory struct {
	mu         sync.RWMutex
	partitions map[Partition]map[string][]byte
	closed     bool
}

// NewMemory builds an empty in-memory store. Open still has to be called.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.partitions == nil {
		m.partitions = make(map[Partition]map[string][]byte, len(Partitions))
	}
	for _, p := range Partitions {
		if _, ok := m.partitions[p]; !ok {
			m.partitions[p] = make(map[string][]byte)
		}
	}
	m.closed = false
	return nil
}

func (m *Memory) Get(_ context.Context, partition Partition, key string) (Record, error) {
	if err := checkPartition(partition); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return Record{}, err
	}
	data, ok := m.partitions[partition][key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{Key: key, Data: clone(data)}, nil
}

func (m *Memory) GetAll(_ context.Context, partition Partition) ([]Record, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(m.partitions[partition]))
	for key, data := range m.partitions[partition] {
		records = append(records, Record{Key: key, Data: clone(data)})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

func (m *Memory) Put(ctx context.Context, partition Partition, records ...Record) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	return m.Apply(ctx, opsFor(partition, records)...)
}

func (m *Memory) Apply(_ context.Context, ops ...Op) error {
	if err := checkOps(ops); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	for _, op := range ops {
		m.partitions[op.Partition][op.Record.Key] = clone(op.Record.Data)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, partitions ...Partition) error {
	for _, p := range partitions {
		if err := checkPartition(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return err
	}
	for _, p := range partitions {
		m.partitions[p] = make(map[string][]byte)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) usableLocked() error {
	if m.partitions == nil || m.closed {
		return unavailable("memory", errNotOpen)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
