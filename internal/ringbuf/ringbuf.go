// Package ringbuf provides a fixed-capacity circular buffer that overwrites
// its oldest element when full.
package ringbuf

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBuffer is returned by Retrieve when the buffer holds no elements.
	ErrEmptyBuffer = errors.New("ringbuf: buffer is empty")

	// ErrIndexOutOfRange is returned by Head and At when the requested
	// position does not hold a valid element.
	ErrIndexOutOfRange = errors.New("ringbuf: index out of range")
)

// RingBuffer is a sliding window over the most recently inserted elements.
// Capacity is fixed at construction. It is not safe for concurrent use; each
// owner keeps its own instance.
type RingBuffer[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	tail     int // oldest element
	size     int // number of valid elements; disambiguates head == tail
}

// New creates a ring buffer holding at most capacity elements.
func New[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ringbuf: capacity must be at least 1, got %d", capacity)
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int) *RingBuffer[T] {
	rb, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return rb
}

// Insert stores item as the newest element. When the buffer is full the
// oldest element is dropped.
func (rb *RingBuffer[T]) Insert(item T) {
	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size == rb.capacity {
		rb.tail = (rb.tail + 1) % rb.capacity
		return
	}
	rb.size++
}

// Retrieve removes and returns the oldest element.
func (rb *RingBuffer[T]) Retrieve() (T, error) {
	var zero T
	if rb.size == 0 {
		return zero, ErrEmptyBuffer
	}
	item := rb.items[rb.tail]
	rb.items[rb.tail] = zero
	rb.tail = (rb.tail + 1) % rb.capacity
	rb.size--
	return item, nil
}

// Head returns the element inserted offset positions before the newest one.
// Head(0) is the most recently inserted element.
func (rb *RingBuffer[T]) Head(offset int) (T, error) {
	var zero T
	if offset < 0 || offset >= rb.size {
		return zero, fmt.Errorf("%w: head offset %d with %d elements", ErrIndexOutOfRange, offset, rb.size)
	}
	idx := ((rb.head-1-offset)%rb.capacity + rb.capacity) % rb.capacity
	return rb.items[idx], nil
}

// At returns the element at position index counted from the oldest one.
// At(0) is the oldest element.
func (rb *RingBuffer[T]) At(index int) (T, error) {
	var zero T
	if index < 0 || index >= rb.size {
		return zero, fmt.Errorf("%w: index %d with %d elements", ErrIndexOutOfRange, index, rb.size)
	}
	return rb.items[(rb.tail+index)%rb.capacity], nil
}

// All returns the valid elements from oldest to newest.
func (rb *RingBuffer[T]) All() []T {
	if rb.size == 0 {
		return nil
	}
	out := make([]T, rb.size)
	for i := 0; i < rb.size; i++ {
		out[i] = rb.items[(rb.tail+i)%rb.capacity]
	}
	return out
}

// Reset drops every element. Capacity is unchanged.
func (rb *RingBuffer[T]) Reset() {
	var zero T
	for i := range rb.items {
		rb.items[i] = zero
	}
	rb.head = 0
	rb.tail = 0
	rb.size = 0
}

// Size returns the number of valid elements.
func (rb *RingBuffer[T]) Size() int { return rb.size }

// Capacity returns the fixed maximum number of elements.
func (rb *RingBuffer[T]) Capacity() int { return rb.capacity }

// Full reports whether Size equals Capacity.
func (rb *RingBuffer[T]) Full() bool { return rb.size == rb.capacity }

// Empty reports whether the buffer holds no elements.
func (rb *RingBuffer[T]) Empty() bool { return rb.size == 0 }
