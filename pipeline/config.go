package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// 配置文件格式
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config 是 post-merge pipeline 的配置：
//
//	pipeline:
//	  name: default
//	  nodes:
//	    - type: filter.history
//	    - type: filter.rule
//	      config: {rule: "item.popularity > 0.2"}
//	    - type: rerank.diversity
//	      config: {max_per_artist: 2}
//	    - type: rerank.topn
//	      disabled: true
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name"`
		Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
	} `yaml:"pipeline" json:"pipeline"`
}

// NodeConfig 是单个 Node 的配置，Disabled 的 Node 不会被构建。
type NodeConfig struct {
	Type     string                 `yaml:"type" json:"type"`
	Disabled bool                   `yaml:"disabled" json:"disabled"`
	Config   map[string]interface{} `yaml:"config" json:"config"`
}

// Parse 按 format 解析配置内容。
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pipeline config format %q", format)
	}
	return &cfg, nil
}

// ParseYAML 等价于 Parse(data, FormatYAML)。
func ParseYAML(data []byte) (*Config, error) {
	return Parse(data, FormatYAML)
}

// LoadFile 读取配置文件，.json 按 JSON 解析，其余按 YAML。
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	return Parse(data, format)
}

// Enabled 返回未被禁用的 Node 配置。
func (c *Config) Enabled() []NodeConfig {
	out := make([]NodeConfig, 0, len(c.Pipeline.Nodes))
	for _, nc := range c.Pipeline.Nodes {
		if !nc.Disabled {
			out = append(out, nc)
		}
	}
	return out
}

// BuildPipeline 用 factory 构建所有启用的 Node。
// factory 在 config 包中组装，pipeline 包不依赖具体 Node。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	enabled := c.Enabled()
	p := &Pipeline{Name: c.Pipeline.Name, Nodes: make([]Node, 0, len(enabled))}
	for i, nc := range enabled {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node #%d (%s): %w", i, nc.Type, err)
		}
		p.Nodes = append(p.Nodes, node)
	}
	return p, nil
}

// NodeFactory 按类型名构建 Node。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: make(map[string]NodeBuilder)}
}

func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Has 表示 nodeType 是否已注册。
func (f *NodeFactory) Has(nodeType string) bool {
	_, ok := f.builders[nodeType]
	return ok
}

// Build 根据类型和配置构建 Node，config 为 nil 时传入空 map。
func (f *NodeFactory) Build(nodeType string, config map[string]interface{}) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	return builder(config)
}
