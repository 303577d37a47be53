package mlengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/model"
)

func TestProgressBrokerDelivery(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	b := mlengine.NewProgressBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := b.SubscribeProgress(ctx)
	sub2 := b.SubscribeProgress(ctx)
	require.Equal(2, b.ListenerCount())

	b.Publish(model.EngineProgress{TaskName: "t1", Status: "downloading"})
	b.Publish(model.EngineProgress{TaskName: "t1", Status: "done"})

	for _, sub := range []<-chan model.EngineProgress{sub1, sub2} {
		assert.Equal("downloading", (<-sub).Status)
		assert.Equal("done", (<-sub).Status)
	}
}

func TestProgressBrokerDetachOnContextDone(t *testing.T) {
	require := require.New(t)

	b := mlengine.NewProgressBroker()
	ctx, cancel := context.WithCancel(context.Background())

	sub := b.SubscribeProgress(ctx)
	cancel()

	select {
	case _, ok := <-sub:
		require.False(ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	require.Equal(0, b.ListenerCount())

	// Publishing without listeners should not block.
	b.Publish(model.EngineProgress{Status: "ignored"})
}
