package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Summarizer 把聚类描述转成一个简短标签。
// 任何失败都由调用方兜底为通用标签。
type Summarizer interface {
	Summarize(ctx context.Context, description string) (string, error)
}

// 持久化记录类型
const (
	KindClusterRun    = "cluster_run"
	KindEvaluationRun = "evaluation_run"
)

// RecordMetadata 是持久化记录的元数据。
type RecordMetadata struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordMetadata 生成带 uuid 与当前时间的元数据。
func NewRecordMetadata(kind, version string) RecordMetadata {
	return RecordMetadata{
		ID:        uuid.NewString(),
		Kind:      kind,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// Persistence 保存聚类与评估结果，本系统不读回。
type Persistence interface {
	Save(ctx context.Context, kind string, record any, meta RecordMetadata) error
}
