// Package store provides durable, partitioned key/value record storage for
// the wallet ledger. Records are opaque JSON documents keyed by a primary key
// inside a named partition.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable indicates the backing storage refused access
	// (unreachable, quota exceeded, disabled). Callers should fall back to an
	// in-memory store for the session rather than treat it as fatal.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound indicates no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownPartition indicates a partition outside of Partitions.
	ErrUnknownPartition = errors.New("unknown partition")

	errNotOpen = errors.New("store not open")
)

// Partition names a logical subdivision of the store.
type Partition string

const (
	PartitionBalance      Partition = "balance"
	PartitionTransactions Partition = "transactions"
	// PartitionUser is reserved; no current flow writes to it.
	PartitionUser Partition = "user"
)

// Partitions lists every partition created by Open.
var Partitions = []Partition{PartitionBalance, PartitionTransactions, PartitionUser}

// Valid reports whether p is one of Partitions.
func (p Partition) Valid() bool {
	for _, known := range Partitions {
		if p == known {
			return true
		}
	}
	return false
}

// Record is a single stored document.
type Record struct {
	Key  string
	Data []byte
}

// Op is one upsert inside an atomic batch.
type Op struct {
	Partition Partition
	Record    Record
}

// Store defines the contract implemented by storage backends (memory, Redis, Postgres).
//
// Every call is atomic with respect to other callers: all writes of a Put,
// Apply or Clear become visible together or not at all.
type Store interface {
	// Open initializes the partitions if absent. It is idempotent.
	Open(ctx context.Context) error
	Get(ctx context.Context, partition Partition, key string) (Record, error)
	// GetAll returns every record of the partition ordered by key.
	GetAll(ctx context.Context, partition Partition) ([]Record, error)
	// Put upserts records by key.
	Put(ctx context.Context, partition Partition, records ...Record) error
	// Apply upserts records across partitions in one backend transaction.
	Apply(ctx context.Context, ops ...Op) error
	// Clear removes all records of the given partitions.
	Clear(ctx context.Context, partitions ...Partition) error
	Close() error
}

func checkPartition(p Partition) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPartition, p)
	}
	return nil
}

func checkOps(ops []Op) error {
	for _, op := range ops {
		if err := checkPartition(op.Partition); err != nil {
			return err
		}
		if op.Record.Key == "" {
			return fmt.Errorf("record key is required (partition %s)", op.Partition)
		}
	}
	return nil
}

func opsFor(partition Partition, records []Record) []Op {
	ops := make([]Op, 0, len(records))
	for _, r := range records {
		ops = append(ops, Op{Partition: partition, Record: r})
	}
	return ops
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
