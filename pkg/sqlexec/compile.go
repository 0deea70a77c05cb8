package sqlexec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rshade/batchload/pkg/batch"
)

// ErrMissingParam is returned when a template references an unbound parameter.
var ErrMissingParam = errors.New("missing query parameter")

// Compile rewrites the :name parameters of template into placeholders of the
// given dialect and returns the positional arguments. Values are always bound,
// never spliced into the query text.
//
// Slice values expand into a comma-separated placeholder list, so
// "id IN (:ids)" works for any number of ids; an empty slice expands to NULL,
// which matches nothing. Quoted literals, "--" and "/* */" comments and "::"
// casts are copied unchanged. With DialectQuestion a backslash escapes the
// next character inside a literal, as MySQL reads it.
func Compile(template string, params batch.Params, d Dialect) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(len(template))
	args := make([]any, 0, len(params))

	n := len(template)
	for i := 0; i < n; i++ {
		c := template[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(template, i, d == DialectQuestion)
			sb.WriteString(template[i:end])
			i = end - 1
		case c == '/' && i+1 < n && template[i+1] == '*':
			end := strings.Index(template[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end += i + 4
			}
			sb.WriteString(template[i:end])
			i = end - 1
		case c == '-' && i+1 < n && template[i+1] == '-':
			end := strings.IndexByte(template[i:], '\n')
			if end < 0 {
				end = n
			} else {
				end += i
			}
			sb.WriteString(template[i:end])
			i = end - 1
		case c == ':' && i+1 < n && template[i+1] == ':':
			sb.WriteString("::")
			i++
		case c == ':' && i+1 < n && isIdentStart(template[i+1]):
			j := i + 1
			for j < n && isIdentPart(template[j]) {
				j++
			}
			name := template[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
			}
			args = bind(&sb, value, args, d)
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), args, nil
}

// bind writes the placeholders for value and appends its arguments.
func bind(sb *strings.Builder, value any, args []any, d Dialect) []any {
	rv := reflect.ValueOf(value)
	isList := value != nil &&
		(rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) &&
		rv.Type().Elem().Kind() != reflect.Uint8

	if !isList {
		args = append(args, value)
		sb.WriteString(d.placeholder(len(args)))
		return args
	}

	if rv.Len() == 0 {
		sb.WriteString("NULL")
		return args
	}
	for k := 0; k < rv.Len(); k++ {
		if k > 0 {
			sb.WriteString(", ")
		}
		args = append(args, rv.Index(k).Interface())
		sb.WriteString(d.placeholder(len(args)))
	}
	return args
}

// closingQuote returns the index just past the quote that closes the literal
// opened at start. Doubled quotes are treated as escapes, and so is a
// backslash followed by any character when backslash is set.
func closingQuote(s string, start int, backslash bool) int {
	q := s[start]
	for j := start + 1; j < len(s); j++ {
		if backslash && s[j] == '\\' && q != '`' {
			j++
			continue
		}
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
