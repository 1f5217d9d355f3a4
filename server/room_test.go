package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenasync/protocol"
)

func newTestHub(t *testing.T, ids ...string) (*Hub, map[string]*mockConn) {
	t.Helper()
	h := NewHub(NewSessionStore())
	conns := make(map[string]*mockConn, len(ids))
	for _, id := range ids {
		c := newMockConn(id)
		h.Register(c)
		conns[id] = c
	}
	return h, conns
}

func bound(playerID, mapID int32) Session {
	return Session{PlayerID: playerID, MapID: mapID, Job: "rogue", Rotation: protocol.IdentityQuat, ScaleFactor: 1000}
}

func TestHubBroadcastIsolation(t *testing.T) {
	h, conns := newTestHub(t, "a", "b", "c", "d")
	h.Enter("a", bound(1, 1))
	h.Enter("b", bound(2, 1))
	h.Enter("c", bound(3, 2))
	// d 未上线，不在任何房间

	delivered, failed := h.Broadcast(1, []byte("hello"), "a")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, failed)

	assert.Len(t, conns["b"].sent, 1)
	assert.Empty(t, conns["a"].sent)
	assert.Empty(t, conns["c"].sent)
	assert.Empty(t, conns["d"].sent)

	delivered, _ = h.Broadcast(2, []byte("x"))
	assert.Equal(t, 1, delivered)
	delivered, _ = h.Broadcast(99, []byte("x"))
	assert.Equal(t, 0, delivered)
}

func TestHubBroadcastCountsFailures(t *testing.T) {
	h, conns := newTestHub(t, "a", "b", "c")
	for i, id := range []ConnID{"a", "b", "c"} {
		h.Enter(id, bound(int32(i+1), 1))
	}
	conns["b"].setFail(true)

	delivered, failed := h.Broadcast(1, []byte("x"))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, failed)
	assert.Len(t, conns["a"].sent, 1)
	assert.Len(t, conns["c"].sent, 1)
}

func TestHubSingleGroupMembership(t *testing.T) {
	h, _ := newTestHub(t, "a")
	h.Enter("a", bound(1, 1))
	require.True(t, h.Join("a", 2))

	assert.Empty(t, h.Members(1))
	assert.Equal(t, []ConnID{"a"}, h.Members(2))
	mapID, ok := h.MapOf("a")
	require.True(t, ok)
	assert.EqualValues(t, 2, mapID)
	s, _ := h.sessions.Get("a")
	assert.EqualValues(t, 2, s.MapID)

	h.Leave("a", 1) // 不在 1 号房间
	assert.Equal(t, []ConnID{"a"}, h.Members(2))

	h.Leave("a", 2)
	assert.Empty(t, h.Members(2))
	_, ok = h.MapOf("a")
	assert.False(t, ok)
	s, _ = h.sessions.Get("a")
	assert.Zero(t, s.MapID)

	assert.False(t, h.Join("ghost", 1))
	rooms, members, conns := h.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, members)
	assert.Equal(t, 1, conns)
}

func TestHubRosterSkipsUnbound(t *testing.T) {
	h, _ := newTestHub(t, "a", "b", "c")
	h.Enter("b", bound(2, 1))
	// c 只在房间里，没有上线
	require.True(t, h.Join("c", 1))

	var roster []Session
	h.EnterWith("a", bound(1, 1), func(r []Session) [][]byte {
		roster = r
		return nil
	})
	require.Len(t, roster, 1)
	assert.EqualValues(t, 2, roster[0].PlayerID)
	assert.Equal(t, ConnID("b"), roster[0].ConnID)
}

func TestHubReleaseOnce(t *testing.T) {
	h, _ := newTestHub(t, "a")
	h.Enter("a", bound(1, 1))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s, ok := h.Release("a"); ok {
				atomic.AddInt32(&wins, 1)
				assert.EqualValues(t, 1, s.PlayerID)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.Empty(t, h.Members(1))
	_, ok := h.sessions.Get("a")
	assert.False(t, ok)
}

func TestHubUnregister(t *testing.T) {
	h, conns := newTestHub(t, "a")
	c, ok := h.Unregister("a")
	require.True(t, ok)
	assert.Same(t, conns["a"], c)
	_, ok = h.Unregister("a")
	assert.False(t, ok)
	assert.False(t, h.SendTo("a", []byte("x")))
}

func TestSessionStoreIsolation(t *testing.T) {
	s := NewSessionStore()
	s.Open("a")
	s.Open("b")

	s.Update("a", func(cur *Session) { cur.Position = protocol.Vec3{X: 9} })
	b, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, protocol.Vec3{}, b.Position)

	got, _ := s.Get("a")
	got.Position.X = 100
	again, _ := s.Get("a")
	assert.EqualValues(t, 9, again.Position.X, "Get returns a copy")

	prev, existed := s.Bind("a", bound(5, 3))
	assert.True(t, existed)
	assert.EqualValues(t, 9, prev.Position.X)
	cur, _ := s.Get("a")
	assert.Equal(t, ConnID("a"), cur.ConnID)
	assert.EqualValues(t, 5, cur.PlayerID)

	_, ok = s.Update("ghost", func(*Session) {})
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestSessionStoreConcurrentUpdates(t *testing.T) {
	s := NewSessionStore()
	s.Open("a")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("a", func(cur *Session) { cur.ScaleFactor += 10 })
		}()
	}
	wg.Wait()
	got, _ := s.Get("a")
	assert.EqualValues(t, 1000, got.ScaleFactor)
}

func TestHubEnterWithPrimesJoiner(t *testing.T) {
	h, conns := newTestHub(t, "a", "b", "c", "d")
	h.Enter("a", bound(1, 1))
	h.Enter("b", bound(2, 1))
	h.Enter("d", bound(4, 2))

	var got []Session
	prev, existed, failed := h.EnterWith("c", bound(3, 1), func(roster []Session) [][]byte {
		got = roster
		return [][]byte{[]byte("list"), []byte("item")}
	})
	assert.True(t, existed)
	assert.False(t, prev.Bound())
	assert.Equal(t, 0, failed)

	var ids []int32
	for _, s := range got {
		ids = append(ids, s.PlayerID)
	}
	assert.ElementsMatch(t, []int32{1, 2}, ids, "roster excludes the joiner and other maps")
	assert.Equal(t, [][]byte{[]byte("list"), []byte("item")}, conns["c"].sent)
	assert.Equal(t, []ConnID{"a", "b", "c"}, h.Members(1))

	conns["c"].reset()
	conns["c"].setFail(true)
	_, _, failed = h.EnterWith("c", bound(3, 2), func([]Session) [][]byte { return [][]byte{[]byte("x")} })
	assert.Equal(t, 1, failed)
}
