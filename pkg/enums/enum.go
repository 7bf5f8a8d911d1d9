// Package enums holds the string-backed value sets stored in the billing
// tables and carried on the wire.
package enums

import (
	"fmt"

	"github.com/samber/lo"
)

func oneOf[T ~string](value T, valid []T) bool {
	return lo.Contains(valid, value)
}

func parse[T ~string](kind, raw string, valid []T) (T, error) {
	if value := T(raw); oneOf(value, valid) {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
