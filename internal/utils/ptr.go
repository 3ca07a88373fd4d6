package utils

import (
	"strings"
	"time"
)

func Ptr[T any](v T) *T {
	return &v
}

func OrZero[T comparable](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Returns nil on an empty or all whitespace string
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Seconds between two optional timestamps, nil when either is missing
func SecondsBetween(from, to *time.Time) *int64 {
	if from == nil || to == nil {
		return nil
	}
	secs := int64(to.Sub(*from) / time.Second)
	return &secs
}
