package loader_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lireddit/backend/internal/loader"
)

type user struct {
	ID   int
	Name string
}

// countingFetch returns a fetch func over the given rows that counts calls
// and records the key sets it was asked for.
func countingFetch(rows map[int]*user) (loader.FetchFunc[int, *user], *atomic.Int64, *[][]int) {
	var calls atomic.Int64
	var mu sync.Mutex
	var batches [][]int
	fetch := func(ctx context.Context, keys []int) (map[int]*user, error) {
		calls.Add(1)
		mu.Lock()
		batches = append(batches, append([]int(nil), keys...))
		mu.Unlock()
		out := make(map[int]*user)
		for _, k := range keys {
			if u, ok := rows[k]; ok {
				out[k] = u
			}
		}
		return out, nil
	}
	return fetch, &calls, &batches
}

func TestLoadCoalescesDistinctKeys(t *testing.T) {
	rows := map[int]*user{1: {1, "ada"}, 2: {2, "brian"}, 3: {3, "carol"}}
	fetch, calls, batches := countingFetch(rows)
	l := loader.New(fetch, loader.WithWait(5*time.Millisecond))

	var wg sync.WaitGroup
	got := make([]*user, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := l.Load(context.Background(), i+1)
			require.NoError(t, err)
			got[i] = u
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load(), "three distinct loads must make one batched call")
	require.Len(t, *batches, 1)
	assert.ElementsMatch(t, []int{1, 2, 3}, (*batches)[0])
	for i := 0; i < 3; i++ {
		require.NotNil(t, got[i])
		assert.Equal(t, i+1, got[i].ID)
	}
}

func TestLoadDedupesSameKey(t *testing.T) {
	fetch, calls, batches := countingFetch(map[int]*user{7: {7, "grace"}})
	l := loader.New(fetch, loader.WithWait(5*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := l.Load(context.Background(), 7)
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.Equal(t, "grace", u.Name)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load(), "same-key loads must share one store call")
	require.Equal(t, [][]int{{7}}, *batches)
}

func TestLoadCachesAcrossBatches(t *testing.T) {
	fetch, calls, _ := countingFetch(map[int]*user{1: {1, "ada"}})
	l := loader.New(fetch, loader.WithWait(time.Millisecond))

	first, err := l.Load(context.Background(), 1)
	require.NoError(t, err)

	// A later load in a new batch window must hit the cache.
	second, err := l.Load(context.Background(), 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoadMissingKeyIsAbsentNotError(t *testing.T) {
	fetch, _, _ := countingFetch(map[int]*user{})
	l := loader.New(fetch, loader.WithWait(time.Millisecond))

	u, err := l.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestLoadFetchErrorFailsWholeBatch(t *testing.T) {
	fetchErr := errors.New("store down")
	l := loader.New(func(ctx context.Context, keys []int) (map[int]*user, error) {
		return nil, fetchErr
	}, loader.WithWait(5*time.Millisecond))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.Load(context.Background(), i)
		}()
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, errs[i], fetchErr)
	}
}

func TestLoadFullBatchDispatchesEarly(t *testing.T) {
	fetch, calls, _ := countingFetch(map[int]*user{1: {1, "a"}, 2: {2, "b"}})
	// Wait long enough that only the max-batch trigger can explain a timely
	// response.
	l := loader.New(fetch, loader.WithWait(time.Minute), loader.WithMaxBatch(2))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 1; i <= 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Load(context.Background(), i)
				require.NoError(t, err)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("full batch did not dispatch before the window elapsed")
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoadAllPreservesKeyOrder(t *testing.T) {
	rows := map[int]*user{1: {1, "a"}, 2: {2, "b"}, 3: {3, "c"}}
	fetch, calls, _ := countingFetch(rows)
	l := loader.New(fetch, loader.WithWait(5*time.Millisecond))

	got, err := l.LoadAll(context.Background(), []int{3, 1, 2, 1})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 1, got[1].ID)
	assert.Equal(t, 2, got[2].ID)
	assert.Same(t, got[1], got[3])
	assert.EqualValues(t, 1, calls.Load())
}

func TestPrimeSkipsFetch(t *testing.T) {
	fetch, calls, _ := countingFetch(map[int]*user{})
	l := loader.New(fetch, loader.WithWait(time.Millisecond))

	seeded := &user{9, "ivy"}
	l.Prime(9, seeded)

	got, err := l.Load(context.Background(), 9)
	require.NoError(t, err)
	assert.Same(t, seeded, got)
	assert.EqualValues(t, 0, calls.Load())
}

func TestLoadHonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	l := loader.New(func(ctx context.Context, keys []int) (map[int]*user, error) {
		<-block
		return nil, nil
	}, loader.WithWait(time.Millisecond))
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := l.Load(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
