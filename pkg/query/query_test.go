package query

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestQuery_LoadingTransitions(t *testing.T) {
	q := New(func(ctx context.Context, revalidate bool) ([]string, bool, error) {
		return []string{"a"}, false, nil
	})

	var (
		mu     sync.Mutex
		states []State[[]string]
	)
	q.Subscribe(func(s State[[]string]) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if q.State().IsLoading {
		t.Fatal("IsLoading should start false")
	}

	final := q.Refresh(context.Background())

	if len(states) != 2 {
		t.Fatalf("transitions = %d, want 2", len(states))
	}
	if !states[0].IsLoading || states[0].IsValidating {
		t.Errorf("first transition = %+v, want loading only", states[0])
	}
	if states[1].IsLoading {
		t.Error("second transition should not be loading")
	}
	if !final.HasData || len(final.Data) != 1 || final.Err != nil {
		t.Errorf("final state = %+v", final)
	}
}

func TestQuery_RevalidateFlag(t *testing.T) {
	var gotRevalidate []bool
	q := New(func(ctx context.Context, revalidate bool) (int, bool, error) {
		gotRevalidate = append(gotRevalidate, revalidate)
		return 1, false, nil
	})

	var sawValidating bool
	unsubscribe := q.Subscribe(func(s State[int]) {
		if s.IsValidating {
			sawValidating = true
		}
	})
	defer unsubscribe()

	q.Refresh(context.Background())
	if sawValidating {
		t.Error("Refresh should not set IsValidating")
	}

	q.Revalidate(context.Background())
	if !sawValidating {
		t.Error("Revalidate should set IsValidating")
	}
	if q.State().IsValidating {
		t.Error("IsValidating should clear after Revalidate")
	}

	if len(gotRevalidate) != 2 || gotRevalidate[0] || !gotRevalidate[1] {
		t.Errorf("revalidate args = %v, want [false true]", gotRevalidate)
	}
}

func TestQuery_ErrorKeepsPreviousData(t *testing.T) {
	fail := false
	boom := errors.New("boom")
	q := New(func(ctx context.Context, revalidate bool) (string, bool, error) {
		if fail {
			return "", false, boom
		}
		return "ok", false, nil
	})

	q.Refresh(context.Background())
	fail = true
	state := q.Refresh(context.Background())

	if !errors.Is(state.Err, boom) {
		t.Errorf("Err = %v, want boom", state.Err)
	}
	if state.Data != "ok" || !state.HasData {
		t.Errorf("Data = %q (has %v), want previous data kept", state.Data, state.HasData)
	}

	fail = false
	if state := q.Refresh(context.Background()); state.Err != nil {
		t.Errorf("Err = %v, want nil after success", state.Err)
	}
}

func TestQuery_ErrorWithoutData(t *testing.T) {
	q := New(func(ctx context.Context, revalidate bool) (*int, bool, error) {
		return nil, false, errors.New("unavailable")
	})

	state := q.Refresh(context.Background())
	if state.HasData || state.Data != nil {
		t.Errorf("state = %+v, want no data", state)
	}
	if state.Err == nil {
		t.Error("Err should be set")
	}
	if state.IsLoading {
		t.Error("IsLoading should be false after failure")
	}
}

func TestQuery_Stale(t *testing.T) {
	q := New(func(ctx context.Context, revalidate bool) (int, bool, error) {
		return 7, true, nil
	})

	if state := q.Refresh(context.Background()); !state.Stale {
		t.Error("Stale should propagate from fetch")
	}
}

func TestQuery_Load(t *testing.T) {
	calls := 0
	q := New(func(ctx context.Context, revalidate bool) (int, bool, error) {
		calls++
		return calls, false, nil
	})

	q.Load(context.Background())
	state := q.Load(context.Background())

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if state.Data != 1 {
		t.Errorf("Data = %d, want 1", state.Data)
	}
}

func TestQuery_SubscriberMayReadState(t *testing.T) {
	q := New(func(ctx context.Context, revalidate bool) (int, bool, error) {
		return 1, false, nil
	})

	q.Subscribe(func(State[int]) {
		_ = q.State()
	})

	q.Refresh(context.Background())
}

func TestQuery_ConcurrentRefresh(t *testing.T) {
	q := New(func(ctx context.Context, revalidate bool) (int, bool, error) {
		return 1, false, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if state := q.State(); state.IsLoading || !state.HasData {
		t.Errorf("state = %+v, want settled with data", state)
	}
}
