package filter

import (
	"context"

	"github.com/rushteam/tunekit/core"
	"github.com/rushteam/tunekit/pkg/dsl"
)

// ParamRule 是请求级 CEL 规则所在的 Params key。
const ParamRule = "rule"

// RuleFilter 用 CEL 表达式筛选曲目：表达式为 true 的保留，false 的过滤。
// Expr 为空时读取请求参数 rule；两者都为空时不过滤。
//
//	track.genre != "metal" && track.features.energy > 0.5
type RuleFilter struct {
	Expr string
}

func (f *RuleFilter) Name() string { return "filter.rule" }

func (f *RuleFilter) expr(rctx *core.RecommendContext) string {
	if f.Expr != "" {
		return f.Expr
	}
	if rctx == nil {
		return ""
	}
	return rctx.ParamString(ParamRule)
}

func (f *RuleFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	expr := f.expr(rctx)
	if expr == "" {
		return false, nil
	}
	prog, err := dsl.Compile(expr)
	if err != nil {
		return false, core.InvalidInput(core.ModuleRecommend, "filter: invalid rule: "+err.Error())
	}
	keep, err := prog.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}

// ValidateRule 在请求入口提前校验规则，避免逐条曲目报错。
func ValidateRule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := dsl.Compile(expr); err != nil {
		return core.InvalidInput(core.ModuleRecommend, "filter: invalid rule: "+err.Error())
	}
	return nil
}
