package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"legal-rag-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	err   error
	calls []tasks.IndexTask
}

func (p *stubProcessor) Process(ctx context.Context, task tasks.IndexTask) error {
	p.calls = append(p.calls, task)
	return p.err
}

type memTracker struct {
	counts map[string]int64
	err    error
}

func (m *memTracker) Incr(ctx context.Context, id string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[id]++
	return m.counts[id], nil
}

func (m *memTracker) Reset(ctx context.Context, id string) error {
	delete(m.counts, id)
	return nil
}

func encode(t *testing.T, task tasks.IndexTask) []byte {
	t.Helper()
	b, err := json.Marshal(task)
	require.NoError(t, err)
	return b
}

func TestHandleMessage_SuccessCommitsAndResets(t *testing.T) {
	task := tasks.NewIndexTask([]string{"data/ipc.json"}, true)
	tracker := &memTracker{counts: map[string]int64{task.ID: 2}}
	proc := &stubProcessor{}

	assert.True(t, handleMessage(context.Background(), encode(t, task), proc, tracker))
	require.Len(t, proc.calls, 1)
	assert.Equal(t, []string{"data/ipc.json"}, proc.calls[0].Sources)
	assert.True(t, proc.calls[0].Publish)
	assert.NotContains(t, tracker.counts, task.ID)
}

func TestHandleMessage_RetriesUntilLimit(t *testing.T) {
	task := tasks.NewIndexTask([]string{"missing"}, false)
	tracker := &memTracker{counts: map[string]int64{}}
	proc := &stubProcessor{err: errors.New("no documents")}

	assert.False(t, handleMessage(context.Background(), encode(t, task), proc, tracker))
	assert.False(t, handleMessage(context.Background(), encode(t, task), proc, tracker))
	assert.True(t, handleMessage(context.Background(), encode(t, task), proc, tracker))
	assert.Equal(t, int64(maxAttempts), tracker.counts[task.ID])
}

func TestHandleMessage_NoCommitWhenTrackerUnavailable(t *testing.T) {
	task := tasks.NewIndexTask([]string{"x"}, false)
	proc := &stubProcessor{err: errors.New("boom")}

	assert.False(t, handleMessage(context.Background(), encode(t, task), proc, nil))
	assert.False(t, handleMessage(context.Background(), encode(t, task), proc, &memTracker{err: errors.New("redis down")}))
}

func TestHandleMessage_MalformedCommits(t *testing.T) {
	proc := &stubProcessor{}
	assert.True(t, handleMessage(context.Background(), []byte("{not json"), proc, nil))
	assert.Empty(t, proc.calls)
}

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokers(" k1:9092, ,k2:9092 "))
	assert.Nil(t, brokers(""))
}
