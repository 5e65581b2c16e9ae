// Package version parses and compares dotted Chrome version strings.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedVersion = errors.New("malformed version string")
	ErrIndexOutOfRange  = errors.New("version component index out of range")
)

// Spec is an ordered sequence of non-negative integer version components,
// e.g. 120.0.6099.109 → [120, 0, 6099, 109]. A Spec always holds at least
// one component and is immutable after Parse.
type Spec struct {
	components []int
	raw        string
}

// Parse splits a dotted version string into its numeric components.
// Every component must be a non-negative integer.
func Parse(s string) (Spec, error) {
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty string", ErrMalformedVersion)
	}

	parts := strings.Split(s, ".")
	components := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Spec{}, fmt.Errorf("%w: %q", ErrMalformedVersion, s)
		}
		components[i] = n
	}

	return Spec{components: components, raw: s}, nil
}

// Len returns the number of components.
func (s Spec) Len() int {
	return len(s.components)
}

// ComponentAt returns the component at index i, counted from the major
// component at index 0.
func (s Spec) ComponentAt(i int) (int, error) {
	if i < 0 || i >= len(s.components) {
		return 0, fmt.Errorf("%w: index %d of %d components", ErrIndexOutOfRange, i, len(s.components))
	}
	return s.components[i], nil
}

// Major returns the major component (index 0).
func (s Spec) Major() int {
	return s.components[0]
}

// EqualsUpTo reports whether s and other agree on every component up to and
// including index upTo. Either spec running out of components before upTo
// counts as disagreement.
func (s Spec) EqualsUpTo(other Spec, upTo int) bool {
	if upTo >= len(s.components) || upTo >= len(other.components) {
		return false
	}
	for i := 0; i <= upTo; i++ {
		if s.components[i] != other.components[i] {
			return false
		}
	}
	return true
}

// Prefix returns the first n components joined with dots, e.g. the
// major.minor.build prefix used by the legacy release pointer.
func (s Spec) Prefix(n int) string {
	if n > len(s.components) {
		n = len(s.components)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.Itoa(s.components[i])
	}
	return strings.Join(parts, ".")
}

// String re-joins the components with dots, reproducing the parsed input.
func (s Spec) String() string {
	return s.raw
}
