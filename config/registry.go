package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/tunekit/pipeline"
)

// 使用配置驱动时，需在入口处 import _ "github.com/rushteam/tunekit/config/builders"
// 以触发内置 Node（filter.history、filter.rule、rerank.diversity、rerank.topn 等）的 init 注册。

// NodeBuilder 与 pipeline.NodeBuilder 一致：根据 config 构建 Node。
type NodeBuilder = pipeline.NodeBuilder

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，供 DefaultFactory 与配置驱动使用。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("rerank.topn", BuildTopNNode) }
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 校验 pipeline 配置中的 node 类型均已注册，禁用的 node 也会被检查。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	factory := DefaultFactory()
	var errs []error
	for i, nc := range cfg.Pipeline.Nodes {
		if !factory.Has(nc.Type) {
			errs = append(errs, fmt.Errorf("node #%d: unsupported node type %q (supported: %v)", i, nc.Type, SupportedTypes()))
		}
	}
	return errors.Join(errs...)
}

// LoadPipeline 读取 pipeline 配置文件，校验后用 DefaultFactory 构建。
func LoadPipeline(path string) (*pipeline.Pipeline, error) {
	cfg, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load pipeline %s: %w", path, err)
	}
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg.BuildPipeline(DefaultFactory())
}
