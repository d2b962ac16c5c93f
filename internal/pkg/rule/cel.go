// Package rule 用 CEL 表达式描述可配置的业务规则
package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator 编译并缓存布尔表达式
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator vars 声明表达式中可以使用的变量及其类型
func NewEvaluator(vars map[string]*cel.Type) (*Evaluator, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for name, typ := range vars {
		opts = append(opts, cel.Variable(name, typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid rule %q: %w", expr, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule %q: %w", expr, err)
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// Compile 预编译表达式，启动时用来尽早发现配置错误
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate 计算表达式，结果必须是 bool
func (e *Evaluator) Evaluate(expr string, facts map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(facts)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rule %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q must evaluate to bool, got %T", expr, out.Value())
	}
	return b, nil
}
