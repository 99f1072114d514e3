package qjunit

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/rlch/qjunit/junit"
)

// namerFunctions are the path helpers available to namer expressions in
// addition to expr's builtins.
var namerFunctions = []expr.Option{
	stringFunc("base", filepath.Base),
	stringFunc("dir", filepath.Dir),
	stringFunc("ext", filepath.Ext),
	stringFunc("stem", func(s string) string {
		b := filepath.Base(s)
		return strings.TrimSuffix(b, filepath.Ext(b))
	}),
}

func stringFunc(name string, fn func(string) string) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		s, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: want string, got %T", name, params[0])
		}

		return fn(s), nil
	}, new(func(string) string))
}

// CompileNamer compiles a namer expression such as
//
//	trimSuffix(base(source), ".html")
//
// into a junit.Namer. An empty expression yields junit.DefaultNamer. If the
// expression fails at run time for some source, the default name is used and
// the failure logged.
func CompileNamer(expression string, logger *zap.Logger) (junit.Namer, error) {
	if strings.TrimSpace(expression) == "" {
		return junit.DefaultNamer, nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append([]expr.Option{
		expr.Env(map[string]any{"source": ""}),
		expr.AsKind(reflect.String),
	}, namerFunctions...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNamer, err)
	}

	return func(source string) string {
		name, err := runNamer(program, source)
		if err != nil {
			logger.Warn("namer failed, using default",
				zap.String("source", source),
				zap.Error(err))

			return junit.DefaultNamer(source)
		}

		return name
	}, nil
}

func runNamer(program *vm.Program, source string) (string, error) {
	out, err := expr.Run(program, map[string]any{"source": source})
	if err != nil {
		return "", err
	}

	name, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("namer returned %T", out)
	}

	return name, nil
}
