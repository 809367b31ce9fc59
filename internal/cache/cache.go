package cache

import (
	"context"
	"sync"
	"time"
)

// Store はレンダリング済みページのTTL付きキャッシュ。
// キャッシュ層の障害でリクエストを落とさないため、呼び出し側はエラーをヒットなし扱いにできる。
type Store interface {
	// Get はキーに対応する値を返す。ヒットしない（または期限切れ）場合はok=false。
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set はキーに値をTTL付きで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear は全エントリを破棄する。
	Clear(ctx context.Context) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory はプロセス内のTTLキャッシュ。
// 単一プロセス構成のデフォルトで、テストでは決定的なキャッシュとしても使える。
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory はMemoryを生成する。
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryWithClock はテスト用に時計を差し替えたMemoryを生成する。
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// Get は未期限のエントリを返す。期限切れのエントリはその場で破棄する。
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set は値をTTL付きで保存する。ttlが0以下の場合は保存しない。
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Clear は全エントリを破棄する。
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]memoryEntry)
	return nil
}

// compile-time interface check
var _ Store = (*Memory)(nil)
