package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonXSong/adk-demos/core"
)

func key(app, user, id string) core.SessionKey {
	return core.SessionKey{AppName: app, UserID: user, SessionID: id}
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")

	created, err := store.Create(k, map[string]any{"unit": "Celsius"})
	require.NoError(t, err)
	assert.Equal(t, k, created.Key)

	got, err := store.Get(k)
	require.NoError(t, err)
	v, ok := got.GetState("unit")
	require.True(t, ok)
	assert.Equal(t, "Celsius", v)
}

func TestInMemoryStore_Create_AlreadyExists(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")

	_, err := store.Create(k, nil)
	require.NoError(t, err)

	_, err = store.Create(k, nil)
	assert.ErrorIs(t, err, core.ErrSessionExists)
}

func TestInMemoryStore_Get_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(key("app", "user-1", "missing"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_KeyTripleScopesIdentity(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Create(key("app", "user-1", "sess-1"), map[string]any{"owner": "user-1"})
	require.NoError(t, err)

	// Same session id under a different user is a different session.
	_, err = store.Create(key("app", "user-2", "sess-1"), map[string]any{"owner": "user-2"})
	require.NoError(t, err)

	_, err = store.Get(key("other-app", "user-1", "sess-1"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	got, err := store.Get(key("app", "user-2", "sess-1"))
	require.NoError(t, err)
	owner, _ := got.GetState("owner")
	assert.Equal(t, "user-2", owner)
}

func TestInMemoryStore_AppendEvent_ReadAfterWrite(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")
	_, err := store.Create(k, nil)
	require.NoError(t, err)

	require.NoError(t, store.AppendEvent(k, core.NewUserMessageEvent("run-1", "hello")))

	got, err := store.Get(k)
	require.NoError(t, err)
	events := got.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Content.FirstText())
}

func TestInMemoryStore_AppendEvent_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	err := store.AppendEvent(key("app", "user-1", "missing"), core.NewUserMessageEvent("run-1", "hi"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ApplyDelta(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")
	_, err := store.Create(k, map[string]any{"unit": "Celsius"})
	require.NoError(t, err)

	require.NoError(t, store.ApplyDelta(k, map[string]any{"unit": "Fahrenheit", "city": "London"}))

	got, err := store.Get(k)
	require.NoError(t, err)
	unit, _ := got.GetState("unit")
	city, _ := got.GetState("city")
	assert.Equal(t, "Fahrenheit", unit)
	assert.Equal(t, "London", city)

	err = store.ApplyDelta(key("app", "user-1", "missing"), map[string]any{"x": 1})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_GetReturnsClone(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")
	_, err := store.Create(k, map[string]any{"unit": "Celsius"})
	require.NoError(t, err)

	got, err := store.Get(k)
	require.NoError(t, err)
	got.SetState("unit", "Kelvin")

	fresh, err := store.Get(k)
	require.NoError(t, err)
	unit, _ := fresh.GetState("unit")
	assert.Equal(t, "Celsius", unit)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()
	k := key("app", "user-1", "sess-1")
	_, err := store.Create(k, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.AppendEvent(k, core.NewUserMessageEvent("run-1", fmt.Sprintf("msg-%d", i)))
			_ = store.ApplyDelta(k, map[string]any{fmt.Sprintf("k%d", i): i})
			_, _ = store.Get(k)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(k)
	require.NoError(t, err)
	assert.Len(t, got.GetEvents(), 10)
	assert.Len(t, got.State, 10)
}
