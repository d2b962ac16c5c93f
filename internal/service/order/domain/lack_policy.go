package domain

import (
	"eshop/internal/pkg/rule"

	"github.com/google/cel-go/cel"
)

// DefaultLackRule 只有已出库且没有发起过缺品的订单可以缺品
const DefaultLackRule = "status == 40 && !lacked"

// LackPolicy 判断订单是否允许发起缺品，规则是一条 CEL 表达式
type LackPolicy struct {
	expr string
	eval *rule.Evaluator
}

func NewLackPolicy(expr string) (*LackPolicy, error) {
	if expr == "" {
		expr = DefaultLackRule
	}
	eval, err := rule.NewEvaluator(map[string]*cel.Type{
		"status":    cel.IntType,
		"lacked":    cel.BoolType,
		"orderType": cel.IntType,
		"payAmount": cel.IntType,
	})
	if err != nil {
		return nil, err
	}
	if err := eval.Compile(expr); err != nil {
		return nil, err
	}
	return &LackPolicy{expr: expr, eval: eval}, nil
}

// Allow 规则执行出错时视为不允许
func (p *LackPolicy) Allow(o *Order) (bool, error) {
	return p.eval.Evaluate(p.expr, map[string]any{
		"status":    int64(o.Status),
		"lacked":    o.IsLacked(),
		"orderType": int64(o.OrderType),
		"payAmount": o.PayAmount,
	})
}
