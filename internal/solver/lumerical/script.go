// Package lumerical renders a plan as a Lumerical FDTD script and runs it
// with the vendor binary.
package lumerical

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Ref is a script variable reference, rendered without quotes.
type Ref string

// Matrix is a two-dimensional numeric argument, rendered row by row.
type Matrix [][]float64

// Call is one script statement: name(args...), optionally assigned to a
// variable.
type Call struct {
	Assign string
	Name   string
	Args   []any
}

// Script is an ordered list of calls.
type Script struct {
	calls []Call
}

// Call appends a statement.
func (s *Script) Call(name string, args ...any) *Script {
	s.calls = append(s.calls, Call{Name: name, Args: args})
	return s
}

// Assign appends a statement whose value is stored in variable v.
func (s *Script) Assign(v, name string, args ...any) *Script {
	s.calls = append(s.calls, Call{Assign: v, Name: name, Args: args})
	return s
}

// Set sets a property on the selected object.
func (s *Script) Set(property string, value any) *Script {
	return s.Call("set", property, value)
}

// Calls returns the recorded statements.
func (s *Script) Calls() []Call { return s.calls }

// Find returns every call with the given name.
func (s *Script) Find(name string) []Call {
	var out []Call
	for _, c := range s.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// WriteTo renders the script.
func (s *Script) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, c := range s.calls {
		line, err := c.render()
		if err != nil {
			return n, err
		}
		m, err := io.WriteString(w, line+"\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// String renders the script, replacing unrenderable arguments with an
// error marker.
func (s *Script) String() string {
	var b strings.Builder
	if _, err := s.WriteTo(&b); err != nil {
		fmt.Fprintf(&b, "# %v\n", err)
	}
	return b.String()
}

func (c Call) render() (string, error) {
	var b strings.Builder
	if c.Assign != "" {
		b.WriteString(c.Assign + " = ")
	}
	b.WriteString(c.Name)
	if len(c.Args) > 0 {
		parts := make([]string, len(c.Args))
		for i, a := range c.Args {
			v, err := renderValue(a)
			if err != nil {
				return "", fmt.Errorf("%s argument %d: %w", c.Name, i, err)
			}
			parts[i] = v
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	b.WriteString(";")
	return b.String(), nil
}

func renderValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return quote(x)
	case Ref:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case float64:
		return formatFloat(x), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case Matrix:
		rows := make([]string, len(x))
		for i, row := range x {
			cols := make([]string, len(row))
			for j, f := range row {
				cols[j] = formatFloat(f)
			}
			rows[i] = strings.Join(cols, ", ")
		}
		return "[" + strings.Join(rows, "; ") + "]", nil
	default:
		return "", fmt.Errorf("unsupported script value %T", v)
	}
}

// quote uses double quotes, or single quotes when the text contains a
// double quote. The script language has no escapes.
func quote(s string) (string, error) {
	switch {
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, nil
	case !strings.Contains(s, "'"):
		return "'" + s + "'", nil
	default:
		return "", fmt.Errorf("string %q mixes both quote characters", s)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
