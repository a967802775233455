package tabsh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := newRequestQueue()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, q.push(&request{cmd: SchemaCommand{Name: name}}))
	}
	assert.Equal(t, 3, q.len())

	for _, want := range []string{"a", "b", "c"} {
		req, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, SchemaCommand{Name: want}, req.cmd)
	}
	assert.Equal(t, 0, q.len())
}

func TestRequestQueueBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := newRequestQueue()
	got := make(chan *request, 1)
	go func() {
		req, _ := q.pop()
		got <- req
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.push(&request{cmd: ListCommand{}}))
	select {
	case req := <-got:
		assert.Equal(t, ListCommand{}, req.cmd)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestRequestQueueCloseDrains(t *testing.T) {
	t.Parallel()

	q := newRequestQueue()
	require.NoError(t, q.push(&request{cmd: ListCommand{}}))
	q.close()

	require.ErrorIs(t, q.push(&request{cmd: ListCommand{}}), ErrShellClosed)

	_, ok := q.pop()
	assert.True(t, ok)
	_, ok = q.pop()
	assert.False(t, ok)
}
