package model

import (
	"fmt"
	"time"
)

// Timestamp normalizes a server instant to the precision the store keeps.
// Every validity comparison must happen on normalized values so the in-memory
// predicates agree with the SQL filters in the repository package.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// ValidMandatory reports whether an entity with a mandatory expiry is valid at
// the given instant. Both bounds are inclusive.
func ValidMandatory(createdAt time.Time, expiresAt time.Time, at time.Time) bool {
	return !at.Before(createdAt) && !at.After(expiresAt)
}

// ValidOptional reports whether an entity with an optional expiry is valid at
// the given instant. A nil expiry never lapses.
func ValidOptional(createdAt time.Time, expiresAt *time.Time, at time.Time) bool {
	if at.Before(createdAt) {
		return false
	}
	return expiresAt == nil || !at.After(*expiresAt)
}

// Range is an inclusive configured interval with an optional default.
type Range[T interface{ ~int | ~int64 }] struct {
	Min     T
	Max     T
	Default T
}

func (r Range[T]) Contains(v T) bool {
	return r.Min <= v && v <= r.Max
}

// Resolve returns the default for a zero value and otherwise the value itself.
func (r Range[T]) Resolve(v T) T {
	if v == 0 {
		return r.Default
	}
	return v
}

func (r Range[T]) String() string {
	return fmt.Sprintf("[%v; %v] (default: %v)", r.Min, r.Max, r.Default)
}

