package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Calculator evaluates arithmetic expressions without shelling out to an
// interpreter. The expression language is expr's; no environment is exposed,
// so only literals and operators are available.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Name() string {
	return "calc"
}

func (c *Calculator) Description() string {
	return "Evaluate an arithmetic expression, e.g. (2+3)*4"
}

// Call compiles and evaluates the expression.
func (c *Calculator) Call(_ context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(input)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}

	result, err := expr.Run(program, nil)
	if err != nil {
		return "", fmt.Errorf("evaluating expression: %w", err)
	}

	return fmt.Sprintf("%v", result), nil
}

var _ Tool = (*Calculator)(nil)
