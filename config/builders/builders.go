// Package builders 注册内置的 post-merge pipeline Node。
//
//	import _ "github.com/rushteam/tunekit/config/builders"
package builders

import (
	"fmt"
	"sync"

	"github.com/rushteam/tunekit/config"
	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/filter"
	"github.com/rushteam/tunekit/pipeline"
	"github.com/rushteam/tunekit/pkg/conv"
	"github.com/rushteam/tunekit/pkg/logging"
	"github.com/rushteam/tunekit/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("filter.history", BuildHistoryNode)
	config.Register("filter.rule", BuildRuleNode)
	config.Register("filter.blacklist", BuildBlacklistNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.sort", BuildSortNode)
	config.Register("rerank.dedup", BuildDedupNode)
}

var (
	depsMu sync.RWMutex
	store  core.Store
	logger logging.Logger
)

// SetStore 设置 filter.blacklist 读取黑名单所用的 Store，需在构建 pipeline 前调用。
func SetStore(s core.Store) {
	depsMu.Lock()
	defer depsMu.Unlock()
	store = s
}

// SetLogger 设置 filter 节点使用的 logger。
func SetLogger(l logging.Logger) {
	depsMu.Lock()
	defer depsMu.Unlock()
	logger = l
}

func deps() (core.Store, logging.Logger) {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return store, logger
}

// BuildFilterNode 组合多个过滤器：
//
//	type: filter
//	config:
//	  filters:
//	    - type: history
//	    - type: rule
//	      expr: track.features.energy > 0.3
//	    - type: blacklist
//	      track_ids: [t1]
func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		f, err := buildFilter(conv.ConfigGet(filterMap, "type", ""), filterMap)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	_, l := deps()
	return &filter.FilterNode{Filters: filters, Logger: l}, nil
}

func buildFilter(typ string, cfg map[string]interface{}) (filter.Filter, error) {
	switch typ {
	case "history":
		return filter.HistoryFilter{}, nil
	case "rule":
		expr := conv.ConfigGet(cfg, "expr", "")
		if expr != "" {
			if err := filter.ValidateRule(expr); err != nil {
				return nil, err
			}
		}
		return &filter.RuleFilter{Expr: expr}, nil
	case "blacklist":
		s, _ := deps()
		key := conv.ConfigGet(cfg, "key", "")
		prefix := conv.ConfigGet(cfg, "user_key_prefix", "")
		if s == nil && (key != "" || prefix != "") {
			return nil, fmt.Errorf("blacklist key configured but no store set")
		}
		return filter.NewBlacklistFilter(
			conv.ConfigGetStringSlice(cfg, "track_ids"),
			conv.ConfigGetStringSlice(cfg, "artists"),
			s, key, prefix,
		), nil
	default:
		return nil, fmt.Errorf("unknown filter type: %q", typ)
	}
}

func single(typ string, cfg map[string]interface{}) (pipeline.Node, error) {
	f, err := buildFilter(typ, cfg)
	if err != nil {
		return nil, err
	}
	_, l := deps()
	return &filter.FilterNode{Filters: []filter.Filter{f}, Logger: l}, nil
}

func BuildHistoryNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return single("history", cfg)
}

func BuildRuleNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return single("rule", cfg)
}

func BuildBlacklistNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return single("blacklist", cfg)
}

func BuildDiversityNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Diversity{
		MaxPerArtist: conv.ConfigGetInt(cfg, "max_per_artist", 1),
		MaxPerGenre:  conv.ConfigGetInt(cfg, "max_per_genre", 1),
	}, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func BuildSortNode(map[string]interface{}) (pipeline.Node, error) {
	return rerank.ScoreSort{}, nil
}

func BuildDedupNode(map[string]interface{}) (pipeline.Node, error) {
	return rerank.Dedup{}, nil
}
