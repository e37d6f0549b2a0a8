package luabind

import "fmt"

// Arg returns the 1-based argument i, or Nil when absent.
func Arg(args []Value, i int) Value {
	if i < 1 || i > len(args) {
		return Nil
	}
	return args[i-1]
}

// ArgNumber returns argument i as a number.
func ArgNumber(args []Value, i int) (float64, error) {
	v := Arg(args, i)
	n, ok := v.AsNumber()
	if !ok {
		return 0, badArg(i, "number", v)
	}
	return n, nil
}

// ArgInt returns argument i as an int. Fractions are truncated.
func ArgInt(args []Value, i int) (int, error) {
	n, err := ArgNumber(args, i)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ArgString returns argument i as a string.
func ArgString(args []Value, i int) (string, error) {
	v := Arg(args, i)
	s, ok := v.AsString()
	if !ok {
		return "", badArg(i, "string", v)
	}
	return s, nil
}

// ArgTable returns argument i as a table snapshot.
func ArgTable(args []Value, i int) (*Table, error) {
	v := Arg(args, i)
	t, ok := v.AsTable()
	if !ok {
		return nil, badArg(i, "table", v)
	}
	return t, nil
}

// OptString returns argument i as a string, or def when it is nil.
func OptString(args []Value, i int, def string) (string, error) {
	if Arg(args, i).IsNil() {
		return def, nil
	}
	return ArgString(args, i)
}

func badArg(i int, want string, got Value) error {
	return fmt.Errorf("%w #%d: %s expected, got %s", ErrBadArgument, i, want, got.Kind())
}
