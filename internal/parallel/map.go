package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map is a parallel mapping function, which runs at most limit mapFuncs at
// once and yields their results in completion order. The input and output
// are represented as iterators, so the typical usage is
//
//	for result, err := range parallel.NewMap(ctx, 4, f).Iter(input) {}
//
// Map is context aware: a canceled context stops starting new mapFuncs and
// ends the iteration. Breaking out of the loop cancels the remaining work.
type Map[E, D any] struct {
	parentCtx    context.Context
	cancelParent context.CancelFunc
	g            *errgroup.Group
	gctx         context.Context
	mapped       chan result[D]
	mapFunc      func(context.Context, E) (D, error)
}

func NewMap[E, D any](parentCtx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	parentCtx, cancelParent := context.WithCancel(parentCtx)
	g, gctx := errgroup.WithContext(parentCtx)
	// one extra slot for the goroutine feeding the input
	g.SetLimit(limit + 1)

	return &Map[E, D]{
		parentCtx:    parentCtx,
		cancelParent: cancelParent,
		g:            g,
		gctx:         gctx,
		mapped:       make(chan result[D], limit),
		mapFunc:      mapFunc,
	}
}

func (s *Map[E, D]) goWorkers(seq iter.Seq2[E, error]) {
	s.g.Go(func() error {
		for entry, nerr := range seq {
			if nerr != nil {
				continue
			}
			if s.gctx.Err() != nil {
				return s.gctx.Err()
			}
			s.g.Go(func() error {
				d, err := s.mapFunc(s.gctx, entry)
				select {
				case <-s.gctx.Done():
					return s.gctx.Err()
				case s.mapped <- result[D]{d: d, e: err}:
				}
				return nil
			})
		}
		return nil
	})
}

func (s *Map[E, D]) Iter(seq iter.Seq2[E, error]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		defer s.cancelParent()
		s.goWorkers(seq)

		go func() {
			_ = s.g.Wait()
			close(s.mapped)
		}()

		for r := range s.mapped {
			if s.parentCtx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}

// Indexed pairs a value with its position in the input.
type Indexed[T any] struct {
	Index int
	Value T
}

// Enumerate turns a slice into the input of Map, keeping each position so
// the caller can restore the input order of the results.
func Enumerate[T any](s []T) iter.Seq2[Indexed[T], error] {
	return func(yield func(Indexed[T], error) bool) {
		for i, x := range s {
			if !yield(Indexed[T]{Index: i, Value: x}, nil) {
				return
			}
		}
	}
}
