package gameserver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOutbox_PushAndDrain(t *testing.T) {
	o := NewOutbox("p1", 4)
	require.NoError(t, o.Push([]byte("one")))
	require.NoError(t, o.Push([]byte("two")))

	assert.Equal(t, []byte("one"), <-o.Messages())
	assert.Equal(t, []byte("two"), <-o.Messages())
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox("p1", 4)
	o.Close()

	err := o.Push([]byte("late"))
	assert.Error(t, err)
	assert.True(t, o.IsClosed())
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox("p1", 2)
	require.NoError(t, o.Push([]byte("a")))
	require.NoError(t, o.Push([]byte("b")))

	err := o.Push([]byte("c"))
	assert.Error(t, err, "a full outbox must reject rather than block")

	// Earlier messages are still intact.
	assert.Equal(t, []byte("a"), <-o.Messages())
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("p1", 4)
	o.Close()
	o.Close()
	assert.True(t, o.IsClosed())

	// The delivery channel is closed, so reads drain then yield zero values.
	_, ok := <-o.Messages()
	assert.False(t, ok)
}

func TestOutbox_CloseDrainsPending(t *testing.T) {
	o := NewOutbox("p1", 4)
	require.NoError(t, o.Push([]byte("pending")))
	o.Close()

	msg, ok := <-o.Messages()
	assert.True(t, ok)
	assert.Equal(t, []byte("pending"), msg)

	_, ok = <-o.Messages()
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesOldOutbox(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	first := r.Register("p1")
	second := r.Register("p1")

	assert.True(t, first.IsClosed(), "re-registering must close the stale outbox")
	assert.False(t, second.IsClosed())
	assert.Equal(t, 1, r.Count())

	r.Send("p1", []byte("hello"))
	assert.Equal(t, []byte("hello"), <-second.Messages())
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	out := r.Register("p1")
	r.Unregister("p1")

	assert.True(t, out.IsClosed())
	assert.Equal(t, 0, r.Count())

	// Unknown players are a no-op.
	r.Unregister("p1")
	r.Unregister("ghost")
}

func TestRegistry_SendToUnregisteredIsNoOp(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Send("nobody", []byte("lost"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_BroadcastBestEffort(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	alive := r.Register("alive")
	dead := r.Register("dead")
	dead.Close()

	r.Broadcast([]string{"dead", "alive", "absent"}, []byte("update"))

	// The dead and absent recipients must not block delivery to the live one.
	select {
	case msg := <-alive.Messages():
		assert.Equal(t, []byte("update"), msg)
	default:
		t.Fatal("live recipient received nothing")
	}
}

func TestRegistry_Count(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	for i := 0; i < 5; i++ {
		r.Register(fmt.Sprintf("p%d", i))
	}
	assert.Equal(t, 5, r.Count())
	r.Unregister("p0")
	assert.Equal(t, 4, r.Count())
}
