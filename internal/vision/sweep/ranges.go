package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// maxLimitValues bounds the size of a generated limit list.
const maxLimitValues = 10000

// IntRangeSpec defines an integer range for sweeping.
type IntRangeSpec struct {
	Min  int
	Max  int
	Step int
}

// ParseIntRangeSpec parses a "min:max:step" string into an IntRangeSpec.
func ParseIntRangeSpec(s string) (IntRangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return IntRangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	vals := make([]int, 3)
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return IntRangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 {
		return IntRangeSpec{}, fmt.Errorf("step must be positive, got %d", vals[2])
	}
	return IntRangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// Values expands the range, inclusive of Max. Ranges that are empty or
// would produce more than maxLimitValues entries return nil.
func (r IntRangeSpec) Values() []int {
	if r.Step <= 0 || r.Min > r.Max {
		return nil
	}
	count := (r.Max-r.Min)/r.Step + 1
	if count > maxLimitValues || count < 0 {
		return nil
	}
	out := make([]int, 0, count)
	for v := r.Min; v <= r.Max; v += r.Step {
		out = append(out, v)
	}
	return out
}

// ParseCSVInts parses a comma-separated list of int values.
// Returns nil, nil for empty input strings.
func ParseCSVInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseLimits parses retention limits given as a comma-separated list
// ("50,100") or a "min:max:step" range ("10:50:10"). Every limit must be
// a positive integer. Returns nil, nil for an empty string.
func ParseLimits(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var (
		out []int
		err error
	)
	if strings.Contains(s, ":") {
		spec, perr := ParseIntRangeSpec(s)
		if perr != nil {
			return nil, perr
		}
		out = spec.Values()
		if len(out) == 0 {
			return nil, fmt.Errorf("range %q yields no limits", s)
		}
	} else {
		out, err = ParseCSVInts(s)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%q lists no limits", s)
		}
	}

	for _, n := range out {
		if n < 1 {
			return nil, fmt.Errorf("retention limit %d must be positive", n)
		}
	}
	return out, nil
}
