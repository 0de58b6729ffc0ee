package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_PushPop(t *testing.T) {
	q := NewInMemoryQueue()

	require.NoError(t, q.Push(&Task{Slug: "bavaria-46"}))
	require.NoError(t, q.Push(&Task{Slug: "lagoon-42"}))
	assert.Equal(t, 2, q.Size())

	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bavaria-46", task.Slug)

	task, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lagoon-42", task.Slug)
	assert.Equal(t, 0, q.Size())
}

func TestInMemoryQueue_PriorityOrder(t *testing.T) {
	q := NewInMemoryQueue()

	require.NoError(t, q.Push(&Task{Slug: "low", Priority: 1}))
	require.NoError(t, q.Push(&Task{Slug: "high", Priority: 10}))
	require.NoError(t, q.Push(&Task{Slug: "mid", Priority: 5}))

	var order []string
	for i := 0; i < 3; i++ {
		task, err := q.Pop(context.Background())
		require.NoError(t, err)
		order = append(order, task.Slug)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestInMemoryQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewInMemoryQueue()

	result := make(chan *Task, 1)
	go func() {
		task, err := q.Pop(context.Background())
		if err == nil {
			result <- task
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(&Task{Slug: "late-arrival"}))

	select {
	case task := <-result:
		assert.Equal(t, "late-arrival", task.Slug)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on push")
	}
}

func TestInMemoryQueue_PopHonorsContext(t *testing.T) {
	q := NewInMemoryQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, q.Push(&Task{Slug: "last"}))
	require.NoError(t, q.Close())

	// queued work still drains after close
	task, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", task.Slug)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)

	assert.ErrorIs(t, q.Push(&Task{Slug: "rejected"}), ErrQueueClosed)
}

func TestBatchQueue(t *testing.T) {
	q := NewInMemoryQueue()
	b := NewBatchQueue(q, 2)

	require.NoError(t, b.PushBatch([]*Task{
		{Slug: "one"}, {Slug: "two"}, {Slug: "three"},
	}))

	batch, err := b.PopBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	require.NoError(t, q.Close())

	batch, err = b.PopBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	_, err = b.PopBatch(context.Background())
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
