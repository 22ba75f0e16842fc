// Package persist 保存聚类与评估结果。
//
// 每条记录带 core.RecordMetadata（uuid、类型、版本、时间戳）。
// 后端：Memory（测试）、Nop、Postgres（pgx）、ObjectStore（minio），Multi 同时写多个后端。
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
)

// Envelope 是写入后端的记录格式。
type Envelope struct {
	Metadata core.RecordMetadata `json:"metadata"`
	Payload  json.RawMessage     `json:"payload"`
}

func encode(record any, meta core.RecordMetadata) ([]byte, []byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, nil, fmt.Errorf("persist: encode %s: %w", meta.Kind, err)
	}
	doc, err := json.Marshal(Envelope{Metadata: meta, Payload: payload})
	if err != nil {
		return nil, nil, fmt.Errorf("persist: encode envelope: %w", err)
	}
	return payload, doc, nil
}

func normalizeMeta(kind string, meta core.RecordMetadata) (core.RecordMetadata, error) {
	if kind == "" {
		return meta, core.InvalidInput(core.ModulePersist, "persist: empty record kind")
	}
	if meta.Kind == "" {
		meta.Kind = kind
	}
	if meta.Kind != kind {
		return meta, core.InvalidInput(core.ModulePersist, fmt.Sprintf("persist: kind mismatch %q != %q", meta.Kind, kind))
	}
	if meta.ID == "" {
		fresh := core.NewRecordMetadata(kind, meta.Version)
		meta.ID = fresh.ID
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	return meta, nil
}

// Nop 丢弃所有记录。
type Nop struct{}

func (Nop) Save(context.Context, string, any, core.RecordMetadata) error { return nil }

// Memory 把记录保存在内存中，按写入顺序。
type Memory struct {
	mu      sync.RWMutex
	records []Envelope
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(_ context.Context, kind string, record any, meta core.RecordMetadata) error {
	meta, err := normalizeMeta(kind, meta)
	if err != nil {
		return err
	}
	payload, _, err := encode(record, meta)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records = append(m.records, Envelope{Metadata: meta, Payload: payload})
	m.mu.Unlock()
	return nil
}

// Records 返回某一类型的记录，kind 为空时返回全部。
func (m *Memory) Records(kind string) []Envelope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Envelope
	for _, r := range m.records {
		if kind == "" || r.Metadata.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Multi 把记录写到所有后端，任一失败时返回合并后的错误（其余后端仍会写入）。
type Multi []core.Persistence

func (m Multi) Save(ctx context.Context, kind string, record any, meta core.RecordMetadata) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Save(ctx, kind, record, meta); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ core.Persistence = Nop{}
	_ core.Persistence = (*Memory)(nil)
	_ core.Persistence = Multi(nil)
)
