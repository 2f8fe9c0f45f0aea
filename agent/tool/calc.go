package tool

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/Chative-Sales-Interceptor/agent/contract"
)

var errDivideByZero = errors.New("cannot divide by zero")

func calculate(args map[string]any) contractx.ToolResult {
	expression, ok := String(args, ArgExpression)
	if !ok || expression == "" {
		return contractx.Failure("The expression is invalid: it must be a non-empty string.")
	}

	value, err := Evaluate(expression)
	if errors.Is(err, errDivideByZero) {
		return contractx.Failure("Cannot divide by zero.")
	}
	if err != nil {
		return contractx.Failure(fmt.Sprintf("The expression is invalid: %v.", err))
	}

	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	return contractx.Success(
		fmt.Sprintf("%s = %s", expression, formatted),
		map[string]any{"expression": expression, "result": value},
	)
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOperator
	tokOpen
	tokClose
)

type token struct {
	kind  tokenKind
	op    byte
	value float64
	pos   int
}

// Evaluate computes an arithmetic expression with + - * / % ^, unary minus
// and parentheses. ^ is right associative and binds tighter than unary minus.
func Evaluate(expression string) (float64, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, errors.New("empty expression")
	}

	e := &evaluator{tokens: tokens}
	value, err := e.binary(0)
	if err != nil {
		return 0, err
	}
	if e.i < len(e.tokens) {
		return 0, fmt.Errorf("unexpected token at position %d", e.tokens[e.i].pos)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.New("result is not a finite number")
	}
	return value, nil
}

func tokenize(s string) ([]token, error) {
	var out []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.IndexByte("+-*/%^", c) >= 0:
			out = append(out, token{kind: tokOperator, op: c, pos: i})
			i++
		case c == '(':
			out = append(out, token{kind: tokOpen, pos: i})
			i++
		case c == ')':
			out = append(out, token{kind: tokClose, pos: i})
			i++
		case (c >= '0' && c <= '9') || c == '.':
			start := i
			for i < len(s) && ((s[i] >= '0' && s[i] <= '9') || s[i] == '.') {
				i++
			}
			v, err := strconv.ParseFloat(s[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at position %d", s[start:i], start)
			}
			out = append(out, token{kind: tokNumber, value: v, pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	return out, nil
}

type evaluator struct {
	tokens []token
	i      int
}

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/', '%':
		return 2
	case '^':
		return 3
	default:
		return 0
	}
}

// binary is a precedence-climbing loop over operators binding at least minPrec.
func (e *evaluator) binary(minPrec int) (float64, error) {
	left, err := e.unary()
	if err != nil {
		return 0, err
	}
	for e.i < len(e.tokens) {
		t := e.tokens[e.i]
		if t.kind != tokOperator || precedence(t.op) < minPrec {
			break
		}
		e.i++

		next := precedence(t.op) + 1
		if t.op == '^' {
			next = precedence(t.op)
		}
		right, err := e.binary(next)
		if err != nil {
			return 0, err
		}
		if left, err = apply(t.op, left, right); err != nil {
			return 0, err
		}
	}
	return left, nil
}

func (e *evaluator) unary() (float64, error) {
	if e.i < len(e.tokens) && e.tokens[e.i].kind == tokOperator {
		switch e.tokens[e.i].op {
		case '-':
			e.i++
			v, err := e.binary(precedence('*'))
			return -v, err
		case '+':
			e.i++
			return e.binary(precedence('*'))
		}
	}
	return e.operand()
}

func (e *evaluator) operand() (float64, error) {
	if e.i >= len(e.tokens) {
		return 0, errors.New("expression ends unexpectedly")
	}
	t := e.tokens[e.i]
	switch t.kind {
	case tokNumber:
		e.i++
		return t.value, nil
	case tokOpen:
		e.i++
		v, err := e.binary(0)
		if err != nil {
			return 0, err
		}
		if e.i >= len(e.tokens) || e.tokens[e.i].kind != tokClose {
			return 0, fmt.Errorf("missing closing parenthesis for position %d", t.pos)
		}
		e.i++
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected token at position %d", t.pos)
	}
}

func apply(op byte, a, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	case '%':
		if b == 0 {
			return 0, errDivideByZero
		}
		return math.Mod(a, b), nil
	case '^':
		return math.Pow(a, b), nil
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}
}
