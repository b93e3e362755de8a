package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	b := New[int]()
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	b.Publish(42)
	select {
	case v := <-ch:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("expected value on subscriber channel")
	}
}

func TestBusPublishFansOutToAllSubscribers(t *testing.T) {
	b := New[string]()
	ch1, unsub1 := b.Subscribe(1)
	ch2, unsub2 := b.Subscribe(1)
	defer unsub1()
	defer unsub2()

	b.Publish("hello")
	require.Equal(t, "hello", <-ch1)
	require.Equal(t, "hello", <-ch2)
}

func TestBusPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := New[int]()
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		b.Publish(1)
		b.Publish(2) // buffer full, must be dropped, not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
	require.Equal(t, 1, <-ch)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := New[int]()
	ch, unsubscribe := b.Subscribe(1)
	unsubscribe()
	b.Publish(1)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBusCloseClosesAllSubscribers(t *testing.T) {
	b := New[int]()
	ch1, _ := b.Subscribe(1)
	ch2, _ := b.Subscribe(1)
	b.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	require.False(t, ok1)
	require.False(t, ok2)
}
