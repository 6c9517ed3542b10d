package parallel_test

import (
	"context"
	"iter"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/parallel"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Parallel()

	f := func(_ context.Context, d time.Duration) (int, error) {
		time.Sleep(d)
		return int(d), nil
	}

	input := []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}
	expected := []int{
		int(1 * time.Second),
		int(2 * time.Second),
		int(5 * time.Second),
		int(10 * time.Second),
	}

	type given struct {
		limit   int
		timeout time.Duration
	}

	var testCases = []struct {
		scenario string
		given    given
		then     time.Duration
	}{
		{"limit 1", given{1, 0}, 18 * time.Second},
		{"limit 0 is sequential", given{0, 0}, 18 * time.Second},
		{"limit 2", given{2, 0}, 12 * time.Second},
		{"limit 10", given{10, 0}, 10 * time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				start := time.Now()
				m1 := parallel.NewMap(t.Context(), tt.given.limit, f).Iter(all(input))
				require.ElementsMatch(t, expected, values(m1))
				require.Equal(t, tt.then, time.Since(start))
			})
		})
	}
}

func TestMapCancel(t *testing.T) {
	t.Parallel()
	f := func(ctx context.Context, d time.Duration) (time.Duration, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(d):
			return d, nil
		}
	}

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 1500*time.Millisecond)
		defer cancel()

		start := time.Now()
		input := []time.Duration{1 * time.Second, 10 * time.Second, 10 * time.Second}
		got := values(parallel.NewMap(ctx, 1, f).Iter(all(input)))
		require.Equal(t, []time.Duration{1 * time.Second}, got)
		require.Equal(t, 1500*time.Millisecond, time.Since(start))
		synctest.Wait()
	})
}

func TestMapBreak(t *testing.T) {
	t.Parallel()
	f := func(_ context.Context, i int) (int, error) {
		return i * 2, nil
	}
	synctest.Test(t, func(t *testing.T) {
		var got []int
		for d := range parallel.NewMap(t.Context(), 2, f).Iter(all([]int{1, 2, 3, 4, 5, 6})) {
			got = append(got, d)
			if len(got) == 2 {
				break
			}
		}
		require.Len(t, got, 2)
		// every worker must exit once the consumer is gone
		synctest.Wait()
	})
}

func TestEnumerate(t *testing.T) {
	t.Parallel()
	var got []parallel.Indexed[string]
	for x, err := range parallel.Enumerate([]string{"a", "b", "c"}) {
		require.NoError(t, err)
		got = append(got, x)
	}
	require.Equal(t, []parallel.Indexed[string]{
		{Index: 0, Value: "a"},
		{Index: 1, Value: "b"},
		{Index: 2, Value: "c"},
	}, got)
}

func all[T any](s []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, x := range s {
			if !yield(x, nil) {
				return
			}
		}
	}
}

func values[T any](i iter.Seq2[T, error]) []T {
	var ret []T
	for k, err := range i {
		if err != nil {
			continue
		}
		ret = append(ret, k)
	}
	return ret
}
