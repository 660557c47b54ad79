package repository

import (
	"context"
	"sync"
)

// MemoryKVRepo はプロセス内メモリに保持するKVRepositoryの実装。
// テストと、永続化を無効にした実行で使用する。
type MemoryKVRepo struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKVRepo は空のMemoryKVRepoを生成する。
func NewMemoryKVRepo() *MemoryKVRepo {
	return &MemoryKVRepo{data: make(map[string]string)}
}

// Get は指定キーの値を取得する。
func (r *MemoryKVRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	return v, ok, nil
}

// Put は複数エントリを書き込む。
func (r *MemoryKVRepo) Put(_ context.Context, entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.data[e.Key] = e.Value
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *MemoryKVRepo) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.data, k)
	}
	return nil
}

// Len は保持しているキー数を返す。テスト用。
func (r *MemoryKVRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

var _ KVRepository = (*MemoryKVRepo)(nil)
