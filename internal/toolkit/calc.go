package toolkit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrSyntax         = errors.New("calc: syntax error")
	ErrDivisionByZero = errors.New("calc: division by zero")
)

var calcStrip = regexp.MustCompile(`[^-+*/.0-9]`)

// Sanitize removes everything except digits, the decimal point and the four
// operators.
func Sanitize(expr string) string {
	return calcStrip.ReplaceAllString(expr, "")
}

// Evaluate sanitizes expr and computes it with the usual precedence.
// Unary plus and minus are accepted in front of any operand.
func Evaluate(expr string) (float64, error) {
	p := &parser{src: Sanitize(expr)}
	if p.src == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	return v, nil
}

// FormatResult renders v without trailing zeros.
func FormatResult(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Calculate is Evaluate followed by FormatResult; failures render as "Err".
func Calculate(expr string) string {
	v, err := Evaluate(expr)
	if err != nil {
		return "Err"
	}
	return FormatResult(v)
}

type parser struct {
	src string
	pos int
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

// expr := term (('+'|'-') term)*
func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return v, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return v, nil
		}
		p.pos++
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			v *= rhs
			continue
		}
		if rhs == 0 {
			return 0, ErrDivisionByZero
		}
		v /= rhs
	}
}

// unary := ('+'|'-') unary | number
func (p *parser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.number()
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "" || lit == "." || dots > 1 {
		return 0, fmt.Errorf("%w: bad number at %d", ErrSyntax, start)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return v, nil
}
