package sandbox

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ruleEngine evaluates validation-rule error conditions. A rule fires when
// its formula evaluates to true for the record.
type ruleEngine struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
	now      func() time.Time
}

func newRuleEngine() *ruleEngine {
	return &ruleEngine{
		programs: make(map[string]*vm.Program),
		now:      time.Now,
	}
}

func (e *ruleEngine) fires(formula string, schema *types.SchemaDescriptor, record types.Record) (bool, error) {
	program, err := e.program(formula)
	if err != nil {
		return false, err
	}

	env := make(map[string]interface{}, len(schema.Fields))
	for _, f := range schema.Fields {
		env[f.Name] = record[f.Name]
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", formula, err)
	}
	fired, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("formula %q returned %T, want bool", formula, out)
	}
	return fired, nil
}

// compile checks a formula without evaluating it.
func (e *ruleEngine) compile(formula string) error {
	_, err := e.program(formula)
	return err
}

func (e *ruleEngine) program(formula string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programs[formula]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programs[formula]; ok {
		return prog, nil
	}

	prog, err := expr.Compile(formula,
		expr.Env(map[string]interface{}{}),
		expr.AllowUndefinedVariables(),
		expr.Function("ISBLANK", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("ISBLANK requires 1 argument")
			}
			return isBlank(params[0]), nil
		}),
		expr.Function("LEN", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LEN requires 1 argument")
			}
			if params[0] == nil {
				return 0, nil
			}
			return len([]rune(fmt.Sprint(params[0]))), nil
		}),
		expr.Function("ISPICKVAL", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("ISPICKVAL requires 2 arguments")
			}
			return params[0] != nil && fmt.Sprint(params[0]) == fmt.Sprint(params[1]), nil
		}),
		expr.Function("TODAY", func(params ...interface{}) (interface{}, error) {
			return e.now().Format("2006-01-02"), nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", formula, err)
	}

	e.programs[formula] = prog
	return prog, nil
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
