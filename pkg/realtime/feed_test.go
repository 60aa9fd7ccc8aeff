package realtime_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/realtime"
	"github.com/stretchr/testify/require"
)

func note(id string, read bool) aulasdk.Notification {
	return aulasdk.Notification{ID: id, Title: "title " + id, Read: read}
}

func ids(items []aulasdk.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func TestPushPrependsAndCounts(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	require.True(t, f.Push(note("n1", false)))
	require.Equal(t, []string{"n1"}, ids(f.Snapshot()))
	require.Equal(t, 1, f.Unread())

	require.True(t, f.Push(note("n2", true)))
	require.Equal(t, []string{"n2", "n1"}, ids(f.Snapshot()))
	require.Equal(t, 1, f.Unread())

	require.False(t, f.Push(note("n1", false)), "duplicate push")
	require.Equal(t, 1, f.Unread())
}

func TestPushDuringLoad(t *testing.T) {
	t.Parallel()

	t.Run("pushed item stays in front", func(t *testing.T) {
		f := realtime.NewFeed()
		f.BeginLoad()
		f.Push(note("n9", false))
		f.Seed([]aulasdk.Notification{note("n3", false), note("n2", false), note("n1", true)})
		f.SetUnread(2)
		f.EndLoad()

		require.Equal(t, []string{"n9", "n3", "n2", "n1"}, ids(f.Snapshot()))
		require.Equal(t, 3, f.Unread())
	})

	t.Run("count arrives first", func(t *testing.T) {
		f := realtime.NewFeed()
		f.BeginLoad()
		f.SetUnread(2)
		f.Push(note("n9", false))
		f.Seed([]aulasdk.Notification{note("n3", false), note("n2", false)})

		require.Equal(t, []string{"n9", "n3", "n2"}, ids(f.Snapshot()))
		require.Equal(t, 3, f.Unread())
	})

	t.Run("pushed item read before count", func(t *testing.T) {
		f := realtime.NewFeed()
		f.BeginLoad()
		f.Push(note("n9", false))
		require.True(t, f.MarkRead("n9"))
		f.SetUnread(2)

		require.Equal(t, 2, f.Unread())
	})

	t.Run("load already contains pushed item", func(t *testing.T) {
		f := realtime.NewFeed()
		f.BeginLoad()
		f.Push(note("n3", false))
		f.Seed([]aulasdk.Notification{note("n3", false), note("n2", false)})

		require.Equal(t, []string{"n3", "n2"}, ids(f.Snapshot()))
	})

	t.Run("seed without a pending load replaces", func(t *testing.T) {
		f := realtime.NewFeed()
		f.Push(note("old", false))
		f.Seed([]aulasdk.Notification{note("n1", false)})

		require.Equal(t, []string{"n1"}, ids(f.Snapshot()))
	})
}

func TestMarkReadIsIdempotent(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	f.Seed([]aulasdk.Notification{note("n2", true), note("n1", false)})
	f.SetUnread(1)

	require.True(t, f.MarkRead("n1"))
	require.Equal(t, 0, f.Unread())

	require.False(t, f.MarkRead("n1"))
	require.False(t, f.MarkRead("n2"))
	require.False(t, f.MarkRead("missing"))
	require.Equal(t, 0, f.Unread())
}

func TestCounterNeverNegative(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	f.Seed([]aulasdk.Notification{note("n1", false), note("n2", false)})
	f.SetUnread(0)

	require.True(t, f.MarkRead("n1"))
	require.True(t, f.Remove("n2"))
	require.Equal(t, 0, f.Unread())

	f.SetUnread(-4)
	require.Equal(t, 0, f.Unread())
}

func TestRemoveAndMarkAllRead(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	f.Seed([]aulasdk.Notification{note("n3", false), note("n2", false), note("n1", true)})
	f.SetUnread(2)

	require.True(t, f.Remove("n1"))
	require.Equal(t, 2, f.Unread())
	require.False(t, f.Remove("n1"))

	require.True(t, f.Remove("n3"))
	require.Equal(t, 1, f.Unread())

	f.Push(note("n4", false))
	require.Equal(t, 2, f.MarkAllRead())
	require.Equal(t, 0, f.Unread())
	for _, n := range f.Snapshot() {
		require.True(t, n.Read)
	}
}

func TestClosedFeedIgnoresMutations(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	changes, cancel := f.Subscribe()
	defer cancel()

	f.Push(note("n1", false))
	<-changes

	f.Close()
	f.Close()

	_, open := <-changes
	require.False(t, open)

	require.False(t, f.Push(note("n2", false)))
	require.False(t, f.MarkRead("n1"))
	require.False(t, f.Remove("n1"))
	f.Seed(nil)
	f.SetUnread(9)

	require.Equal(t, []string{"n1"}, ids(f.Snapshot()))
	require.Equal(t, 1, f.Unread())

	late, _ := f.Subscribe()
	_, open = <-late
	require.False(t, open)
}

func TestConcurrentPushes(t *testing.T) {
	t.Parallel()

	f := realtime.NewFeed()
	f.BeginLoad()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.Push(note(fmt.Sprintf("p%d", i), false))
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Seed([]aulasdk.Notification{note("s1", false)})
	}()
	wg.Wait()

	require.Len(t, f.Snapshot(), n+1)
	require.Equal(t, n, f.Unread())
}
