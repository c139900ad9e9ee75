// Package storage provides durable key-value slots and the codecs that keep
// the ledger and the note in them.
package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"betledger/internal/config"
	"betledger/internal/ledger"
)

// KV is a durable key to string slot store.
// Get reports ok=false for a key that was never set.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the provider selected by cfg.Driver
func Open(ctx context.Context, cfg config.Storage, log *zap.Logger) (KV, error) {
	switch cfg.Driver {
	case "sqlite", "":
		log.Info("storage_open", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		log.Info("storage_open", zap.String("driver", "postgres"))
		s, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		log.Info("storage_open", zap.String("driver", "redis"), zap.String("addr", cfg.RedisAddr))
		rdb, err := ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb, cfg.RedisPrefix), nil
	case "memory":
		log.Warn("storage_open", zap.String("driver", "memory"), zap.String("note", "data is lost on exit"))
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// MemoryStore is a KV kept in a map
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

// LedgerPersister stores the whole ledger as one JSON array under Key
type LedgerPersister struct {
	kv  KV
	key string
}

func NewLedgerPersister(kv KV, key string) *LedgerPersister {
	return &LedgerPersister{kv: kv, key: key}
}

func (p *LedgerPersister) Load(ctx context.Context) ([]ledger.Bet, error) {
	v, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		return nil, nil
	}
	return ledger.Unmarshal([]byte(v))
}

func (p *LedgerPersister) Save(ctx context.Context, bets []ledger.Bet) error {
	b, err := ledger.Marshal(bets)
	if err != nil {
		return err
	}
	return p.kv.Set(ctx, p.key, string(b))
}

// NoteStore keeps free text under Key as is
type NoteStore struct {
	kv  KV
	key string
}

func NewNoteStore(kv KV, key string) *NoteStore {
	return &NoteStore{kv: kv, key: key}
}

// Load returns the saved note, or "" if none was saved
func (n *NoteStore) Load(ctx context.Context) (string, error) {
	v, _, err := n.kv.Get(ctx, n.key)
	return v, err
}

func (n *NoteStore) Save(ctx context.Context, text string) error {
	return n.kv.Set(ctx, n.key, text)
}
