package presence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id     string
	closed atomic.Int32
}

func newFakeHandle(id string) *fakeHandle { return &fakeHandle{id: id} }

func (h *fakeHandle) ID() string { return h.id }
func (h *fakeHandle) Send(ctx context.Context, _ []byte) error { return ctx.Err() }
func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

func ids(handles []Handle) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.ID())
	}
	return out
}

func TestBindUnbind(t *testing.T) {
	r := NewRegistry(nil)
	u := uuid.New()
	h1, h2 := newFakeHandle("h1"), newFakeHandle("h2")

	require.NoError(t, r.Bind(u, h1))
	require.NoError(t, r.Bind(u, h2))
	assert.ElementsMatch(t, []string{"h1", "h2"}, ids(r.HandlesOf(u)))

	assert.True(t, r.Unbind(h1))
	assert.ElementsMatch(t, []string{"h2"}, ids(r.HandlesOf(u)))

	assert.False(t, r.Unbind(h1), "second unbind is a no-op")
	assert.ElementsMatch(t, []string{"h2"}, ids(r.HandlesOf(u)))
	assert.Equal(t, 1, r.Count())
}

func TestBindIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	u := uuid.New()
	h := newFakeHandle("h")

	require.NoError(t, r.Bind(u, h))
	require.NoError(t, r.Bind(u, h))
	assert.Len(t, r.HandlesOf(u), 1)
	assert.Equal(t, 1, r.Count())
}

func TestBindMovesHandleBetweenIdentities(t *testing.T) {
	r := NewRegistry(nil)
	u1, u2 := uuid.New(), uuid.New()
	h := newFakeHandle("h")

	require.NoError(t, r.Bind(u1, h))
	require.NoError(t, r.Bind(u2, h))

	assert.Empty(t, r.HandlesOf(u1))
	assert.False(t, r.IsPresent(u1))
	assert.ElementsMatch(t, []string{"h"}, ids(r.HandlesOf(u2)))

	owner, ok := r.IdentityOf(h)
	require.True(t, ok)
	assert.Equal(t, u2, owner)
}

func TestHandlesOfUnknownIdentity(t *testing.T) {
	r := NewRegistry(nil)
	handles := r.HandlesOf(uuid.New())
	assert.NotNil(t, handles)
	assert.Empty(t, handles)
}

func TestHandlesOfAll(t *testing.T) {
	r := NewRegistry(nil)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, r.Bind(a, newFakeHandle("a1")))
	require.NoError(t, r.Bind(a, newFakeHandle("a2")))
	require.NoError(t, r.Bind(b, newFakeHandle("b1")))
	require.NoError(t, r.Bind(c, newFakeHandle("c1")))

	got := r.HandlesOfAll([]uuid.UUID{a, b, a, uuid.New()})
	assert.ElementsMatch(t, []string{"a1", "a2", "b1"}, ids(got))
}

func TestClose(t *testing.T) {
	r := NewRegistry(nil)
	u := uuid.New()
	h1, h2 := newFakeHandle("h1"), newFakeHandle("h2")
	require.NoError(t, r.Bind(u, h1))
	require.NoError(t, r.Bind(uuid.New(), h2))

	r.Close()
	r.Close()

	assert.Equal(t, int32(1), h1.closed.Load())
	assert.Equal(t, int32(1), h2.closed.Load())
	assert.Zero(t, r.Count())
	assert.ErrorIs(t, r.Bind(u, newFakeHandle("late")), ErrRegistryClosed)
	assert.False(t, r.Unbind(h1))
}

// Run with -race.
func TestConcurrentBindUnbind(t *testing.T) {
	r := NewRegistry(nil)
	identities := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				identity := identities[(w+i)%len(identities)]
				h := newFakeHandle(fmt.Sprintf("w%d-%d", w, i))
				if err := r.Bind(identity, h); err != nil {
					t.Error(err)
					return
				}
				_ = r.HandlesOf(identity)
				_ = r.HandlesOfAll(identities)
				r.Unbind(h)

				for _, got := range r.HandlesOf(identity) {
					if got.ID() == h.ID() {
						t.Errorf("handle %s visible after unbind", h.ID())
					}
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Zero(t, r.Count())
	for _, identity := range identities {
		assert.False(t, r.IsPresent(identity))
	}
}
