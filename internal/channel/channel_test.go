package channel_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
)

func TestPipeOrdering(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	requester, worker := channel.NewPipe("progressChannel.a")
	assert.Equal("progressChannel.a", requester.Name())
	assert.Equal("progressChannel.a", worker.Name())

	require.NoError(requester.Post(ctx, model.NewRequestMessage(model.TaskRequest{Action: model.ActionRunAsyncTask, TaskName: "a"})))
	got := <-worker.Messages()
	assert.Equal("a", got.TaskName)

	for _, p := range []string{"1", "2", "3"} {
		require.NoError(worker.Post(ctx, model.NewProgressMessage(p)))
	}
	require.NoError(worker.Close())

	var progress []string
	for msg := range requester.Messages() {
		progress = append(progress, msg.Progress)
	}
	assert.Equal([]string{"1", "2", "3"}, progress)
}

func TestPipePostAfterClose(t *testing.T) {
	requester, _ := channel.NewPipe("x")
	require.NoError(t, requester.Close())
	require.NoError(t, requester.Close())

	err := requester.Post(context.Background(), model.NewProgressMessage("late"))
	assert.True(t, errors.Is(err, channel.ErrClosed))
}

func TestPipeCloseWithBlockedPost(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	// The requester never reads, the worker fills the buffer.
	_, worker := channel.NewPipe("x")
	var err error
	for err == nil {
		postCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		err = worker.Post(postCtx, model.NewProgressMessage("fill"))
		cancel()
	}
	require.ErrorIs(err, context.DeadlineExceeded)

	posted := make(chan error, 1)
	go func() { posted <- worker.Post(ctx, model.NewProgressMessage("blocked")) }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- worker.Close() }()

	select {
	case err := <-closed:
		require.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("close blocked by a pending post")
	}

	select {
	case err := <-posted:
		assert.True(t, errors.Is(err, channel.ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("pending post not released by close")
	}
}

func TestStreamPort(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	in := strings.NewReader(`{"action":"runAsyncTask","taskName":"image-to-text"}

not-json
{"action":"bogus"}
`)
	var out bytes.Buffer

	p, err := channel.NewStreamPort(channel.StreamPortConfig{Name: "progressChannel", Reader: in, Writer: &out, Logger: log.Noop})
	require.NoError(err)

	var got []model.Message
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case msg, ok := <-p.Messages():
			if !ok {
				done = true
				continue
			}
			got = append(got, msg)
		case <-timeout:
			t.Fatal("messages were not closed")
		}
	}
	assert.Equal([]model.Message{
		{Action: "runAsyncTask", TaskName: "image-to-text"},
		{Action: "bogus"},
	}, got)

	env := model.CompletionEnvelope{What: model.OutcomeSuccess, Data: "[]"}
	require.NoError(p.Post(context.Background(), model.NewProgressMessage("Starting image-to-text")))
	require.NoError(p.Post(context.Background(), model.NewCompleteMessage(env)))
	assert.Equal(`{"type":"progressUpdate","progress":"Starting image-to-text"}
{"type":"progressComplete","results":{"what":"success","data":"[]"}}
`, out.String())

	require.NoError(p.Close())
	assert.ErrorIs(p.Post(context.Background(), model.NewProgressMessage("late")), channel.ErrClosed)
}

func TestNewStreamPortInvalidConfig(t *testing.T) {
	_, err := channel.NewStreamPort(channel.StreamPortConfig{Name: "x"})
	assert.Error(t, err)
}
