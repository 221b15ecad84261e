package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// undefinedValue is JS undefined. It never leaves the evaluator: Eval and
// Const turn it into nil.
type undefinedValue struct{}

var undefined = undefinedValue{}

func isNullish(v any) bool {
	_, u := v.(undefinedValue)
	return v == nil || u
}

// exported replaces undefined with nil, copying containers that hold it.
func exported(v any) any {
	switch t := v.(type) {
	case undefinedValue:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = exported(e)
		}
		return out
	case *Object:
		out := NewObject()
		for _, k := range t.keys {
			out.Set(k, exported(t.values[k]))
		}
		return out
	}
	return v
}

// unescape decodes the escape sequences of a JS string or template body.
func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		c = s[i]
		i++
		switch c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i < len(s) && s[i] == '\n' {
				i++
			}
		case 'x':
			if i+2 > len(s) {
				return "", fmt.Errorf("short \\x escape")
			}
			v, err := strconv.ParseUint(s[i:i+2], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape %q", s[i:i+2])
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := readUnicodeEscape(s[i:])
			if err != nil {
				return "", err
			}
			i += n
			if utf16.IsSurrogate(r) && strings.HasPrefix(s[i:], `\u`) {
				r2, n2, err := readUnicodeEscape(s[i+2:])
				if err == nil {
					if pair := utf16.DecodeRune(r, r2); pair != utf8.RuneError {
						r = pair
						i += 2 + n2
					}
				}
			}
			b.WriteRune(r)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func readUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("unterminated \\u{} escape")
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, fmt.Errorf("bad \\u{} escape %q", s[:end+1])
		}
		return rune(v), end + 1, nil
	}
	if len(s) < 4 {
		return 0, 0, fmt.Errorf("short \\u escape")
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad \\u escape %q", s[:4])
	}
	return rune(v), 4, nil
}

// parseNumber parses a JS numeric literal.
func parseNumber(lit string) (float64, error) {
	if strings.HasSuffix(lit, "n") {
		return 0, fmt.Errorf("bigint literal %s is not JSON-safe", lit)
	}
	clean := strings.ReplaceAll(lit, "_", "")
	lower := strings.ToLower(clean)
	if len(lower) > 2 && lower[0] == '0' && strings.ContainsRune("xob", rune(lower[1])) {
		v, err := strconv.ParseInt(lower, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("bad numeric literal %s", lit)
		}
		return float64(v), nil
	}
	// legacy octal and leading zeros: 010 is 8 in sloppy JS, reject instead of guessing
	if len(clean) > 1 && clean[0] == '0' && clean[1] >= '0' && clean[1] <= '9' {
		return 0, fmt.Errorf("legacy octal literal %s", lit)
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric literal %s", lit)
	}
	return v, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil, undefinedValue:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

func toNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if f, err := parseNumber(s); err == nil {
			return f
		}
		return math.NaN()
	case []any:
		switch len(t) {
		case 0:
			return 0
		case 1:
			return toNumber(toString(t[0]))
		}
	}
	return math.NaN()
}

func toInt32(v any) int32 {
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case undefinedValue:
		return "undefined"
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if !isNullish(e) {
				parts[i] = toString(e)
			}
		}
		return strings.Join(parts, ",")
	case *Object:
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// 1e-07 -> 1e-7
		return strings.Replace(strings.Replace(s, "e+0", "e+", 1), "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func typeOf(v any) string {
	switch v.(type) {
	case undefinedValue:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	}
	return "object"
}

func isComposite(v any) bool {
	switch v.(type) {
	case []any, *Object:
		return true
	}
	return false
}

func strictEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case undefinedValue:
		_, ok := b.(undefinedValue)
		return ok
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		return ok && len(x) == len(y) && (len(x) == 0 || &x[0] == &y[0])
	case *Object:
		y, ok := b.(*Object)
		return ok && x == y
	}
	return false
}

// looseEqual is JS ==: null and undefined only equal each other, objects
// compare by identity or through their string form, everything else as
// numbers.
func looseEqual(a, b any) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if typeOf(a) == typeOf(b) {
		return strictEqual(a, b)
	}
	if isComposite(a) {
		return looseEqual(toString(a), b)
	}
	if isComposite(b) {
		return looseEqual(a, toString(b))
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	return toNumber(a) == toNumber(b)
}

func compare(op string, a, b any) bool {
	if isComposite(a) {
		a = toString(a)
	}
	if isComposite(b) {
		b = toString(b)
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch op {
		case "<":
			return as < bs
		case "<=":
			return as <= bs
		case ">":
			return as > bs
		default:
			return as >= bs
		}
	}
	x, y := toNumber(a), toNumber(b)
	switch op {
	case "<":
		return x < y
	case "<=":
		return x <= y
	case ">":
		return x > y
	default:
		return x >= y
	}
}
