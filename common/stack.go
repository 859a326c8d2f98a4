package common

import "errors"

var ErrCapacityExceeded = errors.New("fixed capacity exceeded")

// FixedStack is a bounded LIFO buffer. Pushing past its capacity is an
// error rather than a silent reallocation.
type FixedStack[T any] struct {
	data  []T
	limit int
}

func NewFixedStack[T any](limit int) *FixedStack[T] {
	return &FixedStack[T]{data: make([]T, 0, limit), limit: limit}
}

func (s *FixedStack[T]) Push(v T) error {
	if len(s.data) >= s.limit {
		return ErrCapacityExceeded
	}
	s.data = append(s.data, v)
	return nil
}

func (s *FixedStack[T]) Pop() (v T, ok bool) {
	if len(s.data) == 0 {
		return v, false
	}
	v = s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v, true
}

func (s *FixedStack[T]) Top() (v T, ok bool) {
	if len(s.data) == 0 {
		return v, false
	}
	return s.data[len(s.data)-1], true
}

// Index returns the element at i counting from the bottom.
func (s *FixedStack[T]) Index(i int) T {
	return s.data[i]
}

func (s *FixedStack[T]) Set(i int, v T) {
	s.data[i] = v
}

func (s *FixedStack[T]) Len() int   { return len(s.data) }
func (s *FixedStack[T]) Cap() int   { return s.limit }
func (s *FixedStack[T]) Full() bool { return len(s.data) >= s.limit }
func (s *FixedStack[T]) Empty() bool {
	return len(s.data) == 0
}

func (s *FixedStack[T]) Clear() {
	s.data = s.data[:0]
}

// Slice exposes the live elements; the slice is invalidated by the next Push.
func (s *FixedStack[T]) Slice() []T {
	return s.data
}
