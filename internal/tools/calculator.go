package tools

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const calculatorChars = "0123456789+-*/(). "

// Calculator evaluates arithmetic expressions.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Spec() orchestrator.ToolSpec {
	return orchestrator.ToolSpec{
		Name: "calculator",
		Description: "Performs arithmetic on numbers: percentages, differences, growth rates. " +
			"Use it to verify any calculation in the analysis.",
		Parameters: []orchestrator.ToolParam{{
			Name:        "expression",
			Type:        "string",
			Description: "Expression using numbers, + - * / and parentheses, e.g. '(435.15 - 349.07) / 349.07 * 100'",
			Required:    true,
		}},
	}
}

func (c *Calculator) Invoke(_ context.Context, args map[string]any) (string, error) {
	expr, err := stringArg("calculator", args, "expression")
	if err != nil {
		return "", err
	}
	result, err := Evaluate(expr)
	if err != nil {
		return "", invalidArgs("calculator", "cannot evaluate %q: %v", expr, err)
	}
	return fmt.Sprintf("%s = %s", expr, formatNumber(result)), nil
}

// Evaluate computes an arithmetic expression over float64.
func Evaluate(expr string) (float64, error) {
	for _, r := range expr {
		if !strings.ContainsRune(calculatorChars, r) {
			return 0, fmt.Errorf("invalid character %q: only numbers and + - * / ( ) are allowed", r)
		}
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("syntax error: %w", err)
	}
	return eval(node)
}

func eval(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)

	case *ast.ParenExpr:
		return eval(n.X)

	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)

	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	}
	return 0, fmt.Errorf("unsupported expression")
}

// formatNumber rounds away binary noise such as 86.07999999999998.
func formatNumber(f float64) string {
	if math.Abs(f) < 1e9 {
		f = math.Round(f*1e9) / 1e9
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
