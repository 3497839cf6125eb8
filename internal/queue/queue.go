// Package queue provides the double-ended queue backing the solver worklist.
package queue

import "errors"

type Queue[E any] struct {
	elements []E
}

func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

func (q *Queue[E]) Len() int {
	return len(q.elements)
}

var ErrEmpty = errors.New("Queue is empty")

// Pop removes and returns the oldest element.
func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	var zero E
	q.elements[0] = zero
	q.elements = q.elements[1:]
	return e
}

// PopBack removes and returns the newest element.
func (q *Queue[E]) PopBack() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	last := len(q.elements) - 1
	e := q.elements[last]
	var zero E
	q.elements[last] = zero
	q.elements = q.elements[:last]
	return e
}
