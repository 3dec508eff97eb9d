// Package keystore は鍵レコードの保管層を提供する。
package keystore

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"quantum-key-service/internal/domain"
)

const shardCount = 32

// MemoryStore はシャード分割されたインメモリの鍵ストア。
// 同一IDへの操作は排他され、異なるIDへの操作はシャード単位で並行に進む。
// プロセス再起動をまたぐ永続化はGormStoreが担う。
type MemoryStore struct {
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	records map[string]*domain.KeyRecord
}

// NewMemoryStore は新しいMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*domain.KeyRecord)
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

// Put は鍵レコードを保存する。
func (s *MemoryStore) Put(ctx context.Context, record *domain.KeyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := s.shardFor(record.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.records[record.ID] = record
	return nil
}

// Get は指定されたIDの鍵レコードを取得する。存在しない場合はErrKeyNotFound。
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shard := s.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	record, ok := shard.records[id]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return record, nil
}

// Delete は指定されたIDの鍵レコードを削除する。存在しないIDは何もしない（冪等）。
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shard := s.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.records, id)
	return nil
}

// ListExpired は指定時刻で失効している鍵レコードを列挙する。
// スイープ中に鍵が失効へ遷移しても構わない（スナップショット保証は不要）。
func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var expired []*domain.KeyRecord
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		for _, record := range shard.records {
			if record.Expired(now) {
				expired = append(expired, record)
			}
		}
		shard.mu.RUnlock()
	}
	return expired, nil
}

// AllIDs は保管中の全鍵IDを返す。
func (s *MemoryStore) AllIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		for id := range shard.records {
			ids = append(ids, id)
		}
		shard.mu.RUnlock()
	}
	return ids, nil
}
