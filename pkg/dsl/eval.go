// Package dsl 是基于 CEL (Common Expression Language) 的规则表达式。
//
// 可用变量：
//   - track：id / artist / genre / title / popularity / score / sources / features.<name>
//   - ctx：user_id / mood / activity / time_of_day
//
// 示例：
//   - `track.popularity > 0.3`
//   - `track.genre != "metal" && track.features.energy < 0.8`
//   - `"content" in track.sources`
//   - `ctx.activity == "sleep" && track.features.acousticness > 0.5`
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/tunekit/core"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// 已编译的表达式缓存，expr -> *Program
	programs sync.Map
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("track", cel.DynType),
			cel.Variable("ctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的规则，线程安全，可复用。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，相同表达式只编译一次。
func Compile(expr string) (*Program, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(*Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Match 对单个候选求值。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"track": trackInput(item),
		"ctx":   ctxInput(rctx),
	})
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 编译并求值，便于一次性调用。
func Eval(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(item, rctx)
}

func trackInput(item *core.Item) map[string]any {
	features := make(map[string]any, core.FeatureDim)
	for _, name := range core.FeatureNames {
		features[name] = item.Features[name]
	}
	popularity, _ := item.Meta[core.MetaPopularity].(float64)
	sources := item.Sources()
	if sources == nil {
		sources = []string{}
	}
	return map[string]any{
		"id":         item.ID,
		"artist":     item.MetaString(core.MetaArtist),
		"genre":      item.MetaString(core.MetaGenre),
		"title":      item.MetaString(core.MetaTitle),
		"popularity": popularity,
		"score":      item.Score,
		"sources":    sources,
		"features":   features,
	}
}

func ctxInput(rctx *core.RecommendContext) map[string]any {
	if rctx == nil {
		return map[string]any{"user_id": "", "mood": "", "activity": "", "time_of_day": ""}
	}
	return map[string]any{
		"user_id":     rctx.UserID,
		"mood":        rctx.Context.Mood,
		"activity":    rctx.Context.Activity,
		"time_of_day": rctx.Context.TimeOfDay,
	}
}
