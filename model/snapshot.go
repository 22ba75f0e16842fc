package model

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
)

// 快照 key（prefix 默认 "mf"）：
//
//	{prefix}:user:{id}  用户隐向量（JSON 数组）
//	{prefix}:item:{id}  曲目隐向量
//	{prefix}:users      用户 ID 列表
//	{prefix}:items      曲目 ID 列表
//	{prefix}:bias       全局偏置
const DefaultSnapshotPrefix = "mf"

// Snapshot 把当前模型写入 Store。写入过程中的并发更新可能只部分可见。
func Snapshot(ctx context.Context, s core.Store, m *MatrixFactorization, prefix string) error {
	if prefix == "" {
		prefix = DefaultSnapshotPrefix
	}
	kvs := make(map[string][]byte)
	for _, kind := range []FactorKind{FactorUser, FactorItem} {
		ids := m.factors.IDs(kind)
		for _, id := range ids {
			vec, ok := m.factors.Peek(kind, id)
			if !ok {
				continue
			}
			raw, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("model: encode %s %s: %w", kind, id, err)
			}
			kvs[vectorKey(prefix, kind, id)] = raw
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("model: encode %s ids: %w", kind, err)
		}
		kvs[listKey(prefix, kind)] = raw
	}
	kvs[prefix+":bias"] = []byte(strconv.FormatFloat(m.GlobalBias(), 'g', -1, 64))
	if err := s.BatchSet(ctx, kvs); err != nil {
		return fmt.Errorf("model: snapshot: %w", err)
	}
	return nil
}

// Restore 从 Store 读回快照。没有快照时返回 core.ErrStoreNotFound。
// 维度与模型不一致的向量被拒绝。
func Restore(ctx context.Context, s core.Store, m *MatrixFactorization, prefix string) error {
	if prefix == "" {
		prefix = DefaultSnapshotPrefix
	}
	rawBias, err := s.Get(ctx, prefix+":bias")
	if err != nil {
		return err
	}
	bias, err := strconv.ParseFloat(string(rawBias), 64)
	if err != nil {
		return fmt.Errorf("model: decode bias: %w", err)
	}

	for _, kind := range []FactorKind{FactorUser, FactorItem} {
		rawIDs, err := s.Get(ctx, listKey(prefix, kind))
		if err != nil {
			if core.IsStoreNotFound(err) {
				continue
			}
			return fmt.Errorf("model: read %s ids: %w", kind, err)
		}
		var ids []string
		if err := json.Unmarshal(rawIDs, &ids); err != nil {
			return fmt.Errorf("model: decode %s ids: %w", kind, err)
		}
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = vectorKey(prefix, kind, id)
		}
		vals, err := s.BatchGet(ctx, keys)
		if err != nil {
			return fmt.Errorf("model: read %s vectors: %w", kind, err)
		}
		for i, id := range ids {
			raw, ok := vals[keys[i]]
			if !ok {
				continue
			}
			var vec []float64
			if err := json.Unmarshal(raw, &vec); err != nil {
				return fmt.Errorf("model: decode %s %s: %w", kind, id, err)
			}
			if err := m.factors.Set(kind, id, vec); err != nil {
				return err
			}
		}
	}
	m.SetGlobalBias(bias)
	return nil
}

func vectorKey(prefix string, kind FactorKind, id string) string {
	return prefix + ":" + string(kind) + ":" + id
}

func listKey(prefix string, kind FactorKind) string {
	return prefix + ":" + string(kind) + "s"
}
