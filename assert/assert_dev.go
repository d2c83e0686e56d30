//go:build !release

package assert

import "fmt"

// That panics with a formatted message when the condition does not hold. It guards internal
// invariants during development and compiles to a no-op under the release build tag.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
