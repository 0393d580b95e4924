package quickaccess

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPicker remembers every list it was given.
type recordingPicker struct {
	*ListPicker

	mu   sync.Mutex
	sets [][]*Item
}

func newRecordingPicker(value string) *recordingPicker {
	p := &recordingPicker{ListPicker: NewListPicker()}
	p.SetValue(value)
	return p
}

func (p *recordingPicker) SetItems(items []*Item) {
	p.mu.Lock()
	p.sets = append(p.sets, items)
	p.mu.Unlock()
	p.ListPicker.SetItems(items)
}

func (p *recordingPicker) setCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sets)
}

func item(id string) *Item {
	return &Item{ID: id, Label: id}
}

func labels(items []*Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func newTestSession(t *testing.T, p Picker, prefix string, provider ProviderFunc, opts Options) *Session {
	t.Helper()
	s := NewSession(context.Background(), p, Descriptor{Prefix: prefix, Provider: provider, Options: opts}, nil)
	t.Cleanup(s.Close)
	return s
}

func waitSettled(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSession_StaticPicksTrimFilter(t *testing.T) {
	t.Parallel()

	var got string
	p := newRecordingPicker(">  git st ")
	s := newTestSession(t, p, ">", func(_ context.Context, filter string) (Picks, error) {
		got = filter
		return Static(item("a"), item("b")), nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.Equal(t, "git st", got)
	assert.Equal(t, []string{"a", "b"}, labels(p.Items()))
	assert.Equal(t, "a", p.ActiveItems()[0].ID)
}

func TestSession_SkipTrimFilter(t *testing.T) {
	t.Parallel()

	var got string
	p := newRecordingPicker("> x ")
	s := newTestSession(t, p, ">", func(_ context.Context, filter string) (Picks, error) {
		got = filter
		return None(), nil
	}, Options{SkipTrimFilter: true})

	require.NoError(t, s.Update())
	assert.Equal(t, " x ", got)
	assert.Zero(t, p.setCount(), "no picks must leave the list untouched")
}

func TestSession_StaticActiveIsHighlighted(t *testing.T) {
	t.Parallel()

	a, b := item("a"), item("b")
	p := newRecordingPicker("")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return StaticWithActive([]*Item{a, b}, b), nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.Same(t, b, p.ActiveItems()[0])
}

func TestSession_NoResultsPick(t *testing.T) {
	t.Parallel()

	opts := Options{NoResultsPick: func(filter string) *Item {
		return &Item{ID: "none", Label: "No matching commands for " + filter}
	}}
	empty := func(context.Context, string) (Picks, error) { return Static(), nil }

	p := newRecordingPicker("zz")
	s := newTestSession(t, p, "", empty, opts)
	require.NoError(t, s.Update())
	assert.Equal(t, []string{"No matching commands for zz"}, labels(p.Items()))

	p.SetValue("")
	require.NoError(t, s.Update())
	assert.Empty(t, p.Items(), "an empty filter shows an empty list")
}

func TestSession_FastThenSlowMerge(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: []*Item{item("f1"), item("f2")}},
			Slow: func(context.Context) (PickList, error) {
				close(started)
				<-release
				return PickList{Items: []*Item{item("s1")}}, nil
			},
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.Equal(t, []string{"f1", "f2"}, labels(p.Items()), "fast picks are applied before Update returns")

	<-started
	assert.True(t, p.Busy())

	close(release)
	waitSettled(t, s)
	assert.Equal(t, []string{"f1", "f2", "s1"}, labels(p.Items()))
	assert.False(t, p.Busy())
}

func TestSession_EmptySlowKeepsFast(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: []*Item{item("f1")}},
			Slow: func(context.Context) (PickList, error) { return PickList{}, nil },
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Equal(t, []string{"f1"}, labels(p.Items()))
	assert.Equal(t, 1, p.setCount(), "an empty slow result must not reapply the list")
	assert.False(t, p.Busy())
}

func TestSession_EmptyFastDefersToSlow(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Slow: func(context.Context) (PickList, error) {
				<-release
				return PickList{Items: []*Item{item("s1")}}, nil
			},
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.Zero(t, p.setCount(), "empty fast picks are skipped")

	close(release)
	waitSettled(t, s)
	assert.Equal(t, []string{"s1"}, labels(p.Items()))
}

func TestSession_BothEmptyShowsNoResults(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("q")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Slow: func(context.Context) (PickList, error) { return PickList{}, nil },
		}, nil
	}, Options{NoResultsPick: func(string) *Item { return item("none") }})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Equal(t, []string{"none"}, labels(p.Items()))
}

func TestSession_MergeDelayAppliesOnce(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast:       PickList{Items: []*Item{item("f1")}},
			Slow:       func(context.Context) (PickList, error) { return PickList{Items: []*Item{item("s1")}}, nil },
			MergeDelay: time.Hour,
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Equal(t, []string{"f1", "s1"}, labels(p.Items()))
	assert.Equal(t, 1, p.setCount(), "fast picks must not flash before the merged list")
}

func TestSession_MergeDelayElapsedShowsFast(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: []*Item{item("f1")}},
			Slow: func(context.Context) (PickList, error) {
				<-release
				return PickList{Items: []*Item{item("s1")}}, nil
			},
			MergeDelay: 10 * time.Millisecond,
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	require.Eventually(t, func() bool { return p.setCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"f1"}, labels(p.Items()))

	close(release)
	waitSettled(t, s)
	assert.Equal(t, []string{"f1", "s1"}, labels(p.Items()))
}

func TestSession_SlowMergeKeepsUserHighlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	fast := []*Item{item("a"), item("b"), item("c")}
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: fast},
			Slow: func(context.Context) (PickList, error) {
				close(started)
				<-release
				return PickList{Items: []*Item{item("d")}}, nil
			},
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	<-started
	p.MoveActive(1)

	close(release)
	waitSettled(t, s)
	require.Len(t, p.ActiveItems(), 1)
	assert.Same(t, fast[1], p.ActiveItems()[0])
}

func TestSession_SlowActiveWhenFastHasNone(t *testing.T) {
	t.Parallel()

	d := item("d")
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: []*Item{item("a")}},
			Slow: func(context.Context) (PickList, error) {
				return PickList{Items: []*Item{d}, Active: d}, nil
			},
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Same(t, d, p.ActiveItems()[0])
}

func TestSession_LateArrivalIsDropped(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	p := newRecordingPicker("a")
	s := newTestSession(t, p, "", func(_ context.Context, filter string) (Picks, error) {
		if calls.Add(1) == 1 {
			return FastAndSlowPicks{
				Fast: PickList{Items: []*Item{item("old-fast")}},
				Slow: func(context.Context) (PickList, error) {
					// Ignores cancellation on purpose.
					<-release
					return PickList{Items: []*Item{item("old-slow")}}, nil
				},
			}, nil
		}
		return Static(item("new:" + filter)), nil
	}, Options{})

	require.NoError(t, s.Update())
	p.SetValue("ab")
	require.NoError(t, s.Update())
	assert.Equal(t, []string{"new:ab"}, labels(p.Items()))
	assert.False(t, p.Busy(), "a new cycle clears the busy state")

	close(release)
	// Let the old branch finish.
	s.Close()
	assert.Equal(t, []string{"new:ab"}, labels(p.Items()))
}

func TestSession_RetypeCancelsPreviousCycle(t *testing.T) {
	t.Parallel()

	canceled := make(chan error, 1)
	var calls atomic.Int32
	p := newRecordingPicker("a")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		if calls.Add(1) == 1 {
			return Pending(func(ctx context.Context) (Picks, error) {
				<-ctx.Done()
				canceled <- ctx.Err()
				return nil, ctx.Err()
			}), nil
		}
		return Static(item("second")), nil
	}, Options{})

	require.NoError(t, s.Update())
	p.SetValue("ab")
	require.NoError(t, s.Update())

	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("previous cycle was not canceled")
	}
	assert.Equal(t, []string{"second"}, labels(p.Items()))
}

func TestSession_PendingPicks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return Pending(func(context.Context) (Picks, error) {
			<-release
			return Static(item("late")), nil
		}), nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.True(t, p.Busy())
	assert.Empty(t, p.Items())

	close(release)
	waitSettled(t, s)
	assert.Equal(t, []string{"late"}, labels(p.Items()))
	assert.False(t, p.Busy())
}

func TestSession_PendingResolvesToFastAndSlow(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return Pending(func(context.Context) (Picks, error) {
			return FastAndSlowPicks{
				Fast: PickList{Items: []*Item{item("f")}},
				Slow: func(context.Context) (PickList, error) { return PickList{Items: []*Item{item("s")}}, nil },
			}, nil
		}), nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Equal(t, []string{"f", "s"}, labels(p.Items()))
	assert.False(t, p.Busy())
}

func TestSession_NestedPendingClearsList(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("x")
	p.ListPicker.SetItems([]*Item{item("stale")})
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return Pending(func(context.Context) (Picks, error) {
			return Pending(func(context.Context) (Picks, error) { return None(), nil }), nil
		}), nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Empty(t, p.Items())
	assert.False(t, p.Busy())
}

func TestSession_ProviderErrorClearsList(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := newRecordingPicker("x")
	p.ListPicker.SetItems([]*Item{item("stale")})
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return nil, boom
	}, Options{})

	err := s.Update()
	require.ErrorIs(t, err, boom)
	assert.Empty(t, p.Items())
}

func TestSession_SlowErrorKeepsFast(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("x")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return FastAndSlowPicks{
			Fast: PickList{Items: []*Item{item("f")}},
			Slow: func(context.Context) (PickList, error) { return PickList{}, errors.New("no index") },
		}, nil
	}, Options{})

	require.NoError(t, s.Update())
	waitSettled(t, s)
	assert.Equal(t, []string{"f"}, labels(p.Items()))
	assert.False(t, p.Busy())
}

func TestSession_CloseWaitsForBranchesStartedConcurrently(t *testing.T) {
	t.Parallel()

	// blockUntilCanceled counts how many branches are still running.
	var running atomic.Int32
	blockUntilCanceled := func(ctx context.Context) {
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
	}

	providers := map[string]ProviderFunc{
		"pending": func(context.Context, string) (Picks, error) {
			return Pending(func(ctx context.Context) (Picks, error) {
				blockUntilCanceled(ctx)
				return None(), nil
			}), nil
		},
		"fast and slow": func(context.Context, string) (Picks, error) {
			return FastAndSlowPicks{
				Fast: PickList{Items: []*Item{item("f")}},
				Slow: func(ctx context.Context) (PickList, error) {
					blockUntilCanceled(ctx)
					return PickList{}, ctx.Err()
				},
			}, nil
		},
	}

	for name, provider := range providers {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				s := NewSession(context.Background(), newRecordingPicker("x"), Descriptor{Provider: provider}, nil)

				var wg sync.WaitGroup
				wg.Add(2)
				go func() {
					defer wg.Done()
					_ = s.Update()
				}()
				go func() {
					defer wg.Done()
					s.Close()
				}()
				wg.Wait()

				require.Zero(t, running.Load(), "iteration %d left a branch running after Close", i)
			}
		})
	}
}

func TestSession_UpdateAfterClose(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) { return None(), nil }, Options{})
	s.Close()
	assert.ErrorIs(t, s.Update(), ErrClosed)
}

func TestSession_Accept(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		background bool
		allowed    bool
		wantHidden bool
		wantBg     bool
	}{
		{name: "foreground hides", wantHidden: true},
		{name: "background allowed stays open", background: true, allowed: true, wantBg: true},
		{name: "background not allowed hides", background: true, wantHidden: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got *AcceptEvent
			it := item("a")
			it.Accept = func(ctx context.Context, ev AcceptEvent) {
				assert.NoError(t, ctx.Err())
				got = &ev
			}
			p := newRecordingPicker("")
			s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
				return Static(Separator("header"), it), nil
			}, Options{CanAcceptInBackground: tt.allowed})

			require.NoError(t, s.Update())
			require.True(t, s.Accept(AcceptEvent{InBackground: tt.background}))
			require.NotNil(t, got)
			assert.Equal(t, tt.wantBg, got.InBackground)
			assert.Equal(t, tt.wantHidden, p.Hidden())
		})
	}
}

func TestSession_AcceptWithoutHandler(t *testing.T) {
	t.Parallel()

	p := newRecordingPicker("")
	s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
		return Static(item("plain")), nil
	}, Options{})

	require.NoError(t, s.Update())
	assert.False(t, s.Accept(AcceptEvent{}))
	assert.False(t, p.Hidden())
}

func TestSession_TriggerButton(t *testing.T) {
	t.Parallel()

	t.Run("close", func(t *testing.T) {
		t.Parallel()
		it := item("a")
		it.Buttons = []Button{{Tooltip: "Configure"}}
		it.Trigger = func(context.Context, int) TriggerAction { return ClosePicker }
		p := newRecordingPicker("")
		s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) { return Static(it), nil }, Options{})
		require.NoError(t, s.Update())

		assert.Equal(t, ClosePicker, s.TriggerButton(it, 0))
		assert.True(t, p.Hidden())
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		a, b := item("a"), item("b")
		a.Buttons = []Button{{Tooltip: "Remove"}}
		a.Trigger = func(context.Context, int) TriggerAction { return RemoveItem }
		p := newRecordingPicker("")
		s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) { return Static(a, b), nil }, Options{})
		require.NoError(t, s.Update())

		assert.Equal(t, RemoveItem, s.TriggerButton(a, 0))
		assert.Equal(t, []string{"b"}, labels(p.Items()))
		assert.False(t, p.Hidden())
	})

	t.Run("refresh", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		it := item("a")
		it.Buttons = []Button{{Tooltip: "Refresh"}}
		it.Trigger = func(context.Context, int) TriggerAction { return RefreshPicker }
		p := newRecordingPicker("")
		s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) {
			calls.Add(1)
			return Static(it), nil
		}, Options{})
		require.NoError(t, s.Update())

		assert.Equal(t, RefreshPicker, s.TriggerButton(it, 0))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()
		it := item("a")
		it.Trigger = func(context.Context, int) TriggerAction { return ClosePicker }
		p := newRecordingPicker("")
		s := newTestSession(t, p, "", func(context.Context, string) (Picks, error) { return Static(it), nil }, Options{})
		require.NoError(t, s.Update())

		assert.Equal(t, NoAction, s.TriggerButton(it, 3))
		assert.False(t, p.Hidden())
	})
}
