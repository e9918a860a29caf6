package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/scanner"
)

// evalExpression evaluates the restricted expression grammar used by
// GetExpression: scalar literals, lists, tuples, dicts, and calls to a small
// whitelist of numeric helpers. Anything else is rejected, so config values
// can never smuggle in code.
func evalExpression(input string) (any, error) {
	p := newExprParser(input)
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, fmt.Errorf("unexpected trailing %q", p.text())
	}
	return value, nil
}

type exprParser struct {
	s   scanner.Scanner
	tok rune
}

func newExprParser(input string) *exprParser {
	p := &exprParser{}
	p.s.Init(strings.NewReader(input))
	p.s.Mode = scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanIdents
	p.s.Error = func(*scanner.Scanner, string) {}
	p.next()
	return p
}

func (p *exprParser) next() {
	p.tok = p.s.Scan()
}

func (p *exprParser) text() string {
	if p.tok == scanner.EOF {
		return "end of expression"
	}
	return p.s.TokenText()
}

func (p *exprParser) expect(tok rune) error {
	if p.tok != tok {
		return fmt.Errorf("expected %q, found %q", string(tok), p.text())
	}
	p.next()
	return nil
}

func (p *exprParser) parseValue() (any, error) {
	switch p.tok {
	case scanner.Int:
		value, err := strconv.Atoi(p.s.TokenText())
		if err != nil {
			return nil, err
		}
		p.next()
		return value, nil

	case scanner.Float:
		value, err := strconv.ParseFloat(p.s.TokenText(), 64)
		if err != nil {
			return nil, err
		}
		p.next()
		return value, nil

	case scanner.String:
		value, err := strconv.Unquote(p.s.TokenText())
		if err != nil {
			return nil, err
		}
		p.next()
		return value, nil

	case '\'':
		return p.parseSingleQuoted()

	case '-':
		p.next()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case int:
			return -v, nil
		case float64:
			return -v, nil
		default:
			return nil, fmt.Errorf("cannot negate %T", value)
		}

	case '[':
		return p.parseSequence('[', ']')

	case '(':
		return p.parseTuple()

	case '{':
		return p.parseDict()

	case scanner.Ident:
		return p.parseIdent()

	default:
		return nil, fmt.Errorf("unexpected %q", p.text())
	}
}

// parseSingleQuoted scans a 'single quoted' string one rune at a time,
// since text/scanner only recognizes double quotes.
func (p *exprParser) parseSingleQuoted() (any, error) {
	var b strings.Builder
	for {
		r := p.s.Next()
		if r == scanner.EOF {
			return nil, fmt.Errorf("unterminated string literal")
		}
		if r == '\'' {
			break
		}
		b.WriteRune(r)
	}
	p.next()
	return b.String(), nil
}

func (p *exprParser) parseSequence(open, close rune) ([]any, error) {
	if err := p.expect(open); err != nil {
		return nil, err
	}
	items := []any{}
	for p.tok != close {
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.tok == ',' {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(close); err != nil {
		return nil, err
	}
	return items, nil
}

// parseTuple treats (a, b) as a list and (a) as parenthesized a
func (p *exprParser) parseTuple() (any, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	items := []any{}
	sawComma := false
	for p.tok != ')' {
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.tok == ',' {
			sawComma = true
			p.next()
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if len(items) == 1 && !sawComma {
		return items[0], nil
	}
	return items, nil
}

func (p *exprParser) parseDict() (map[string]any, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	dict := map[string]any{}
	for p.tok != '}' {
		var key string
		switch p.tok {
		case scanner.String:
			unquoted, err := strconv.Unquote(p.s.TokenText())
			if err != nil {
				return nil, err
			}
			key = unquoted
			p.next()
		case '\'':
			value, err := p.parseSingleQuoted()
			if err != nil {
				return nil, err
			}
			key = value.(string)
		case scanner.Ident:
			key = p.s.TokenText()
			p.next()
		default:
			return nil, fmt.Errorf("expected dict key, found %q", p.text())
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		dict[key] = value
		if p.tok == ',' {
			p.next()
			continue
		}
		break
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	return dict, nil
}

func (p *exprParser) parseIdent() (any, error) {
	name := p.s.TokenText()
	p.next()

	switch name {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "None", "null", "nil":
		return nil, nil
	}

	if p.tok != '(' {
		return nil, fmt.Errorf("unknown identifier %q", name)
	}
	args, err := p.parseSequence('(', ')')
	if err != nil {
		return nil, err
	}
	return callHelper(name, args)
}

// callHelper dispatches the numeric helper whitelist
func callHelper(name string, args []any) (any, error) {
	switch name {
	case "range":
		return helperRange(args)
	case "min", "max":
		return helperMinMax(name, args)
	case "abs":
		if len(args) != 1 {
			return nil, fmt.Errorf("abs() takes one argument")
		}
		switch v := args[0].(type) {
		case int:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case float64:
			return math.Abs(v), nil
		}
		return nil, fmt.Errorf("abs() needs a number")
	case "sqrt", "ceil", "floor", "round":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s() takes one argument", name)
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s() needs a number", name)
		}
		switch name {
		case "sqrt":
			return math.Sqrt(x), nil
		case "ceil":
			return int(math.Ceil(x)), nil
		case "floor":
			return int(math.Floor(x)), nil
		default:
			return int(math.Round(x)), nil
		}
	case "int":
		if len(args) != 1 {
			return nil, fmt.Errorf("int() takes one argument")
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("int() needs a number")
		}
		return int(x), nil
	case "float":
		if len(args) != 1 {
			return nil, fmt.Errorf("float() takes one argument")
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("float() needs a number")
		}
		return x, nil
	default:
		return nil, fmt.Errorf("function %q is not allowed in config expressions", name)
	}
}

func helperRange(args []any) (any, error) {
	ints := make([]int, len(args))
	for i, arg := range args {
		v, ok := arg.(int)
		if !ok {
			return nil, fmt.Errorf("range() arguments must be integers")
		}
		ints[i] = v
	}
	start, stop, step := 0, 0, 1
	switch len(ints) {
	case 1:
		stop = ints[0]
	case 2:
		start, stop = ints[0], ints[1]
	case 3:
		start, stop, step = ints[0], ints[1], ints[2]
		if step == 0 {
			return nil, fmt.Errorf("range() step must not be zero")
		}
	default:
		return nil, fmt.Errorf("range() takes one to three arguments")
	}
	out := []any{}
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

func helperMinMax(name string, args []any) (any, error) {
	// min/max accept either a single list or multiple scalars
	values := args
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			values = list
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s() needs at least one value", name)
	}
	best, ok := asFloat(values[0])
	if !ok {
		return nil, fmt.Errorf("%s() needs numbers", name)
	}
	allInt := isInt(values[0])
	for _, arg := range values[1:] {
		x, ok := asFloat(arg)
		if !ok {
			return nil, fmt.Errorf("%s() needs numbers", name)
		}
		allInt = allInt && isInt(arg)
		if (name == "min" && x < best) || (name == "max" && x > best) {
			best = x
		}
	}
	if allInt {
		return int(best), nil
	}
	return best, nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func isInt(v any) bool {
	_, ok := v.(int)
	return ok
}
