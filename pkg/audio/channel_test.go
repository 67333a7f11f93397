package audio_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vigil/pkg/audio"
)

func frame(n byte) audio.AudioFrame {
	return audio.AudioFrame{Data: []byte{n, 0}, SampleRate: 16000, Channels: 1}
}

func TestBoundedChannel_DefaultCapacity(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(0)
	if ch.Cap() != audio.DefaultChannelCapacity {
		t.Errorf("Cap() = %d, want %d", ch.Cap(), audio.DefaultChannelCapacity)
	}
}

func TestBoundedChannel_FIFO(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(8)
	for i := range 5 {
		if !ch.Send(frame(byte(i))) {
			t.Fatalf("Send(%d) = false, want true", i)
		}
	}
	for i := range 5 {
		f, ok := ch.Receive(context.Background(), time.Second)
		if !ok {
			t.Fatalf("Receive #%d: ok = false", i)
		}
		if f.Data[0] != byte(i) {
			t.Errorf("Receive #%d: got frame %d, want %d", i, f.Data[0], i)
		}
	}
}

func TestBoundedChannel_DropNewestWhenFull(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(100)
	for i := range 150 {
		ch.Send(frame(byte(i)))
	}
	if ch.Size() != 100 {
		t.Fatalf("Size() = %d, want 100", ch.Size())
	}
	if ch.Dropped() != 50 {
		t.Errorf("Dropped() = %d, want 50", ch.Dropped())
	}
	// The retained frames are exactly the first 100 enqueued.
	for i := range 100 {
		f, ok := ch.Receive(context.Background(), time.Second)
		if !ok {
			t.Fatalf("Receive #%d: ok = false", i)
		}
		if f.Data[0] != byte(i) {
			t.Fatalf("Receive #%d: got frame %d, want %d", i, f.Data[0], i)
		}
	}
}

func TestBoundedChannel_SendNeverBlocks(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(1)
	done := make(chan struct{})
	go func() {
		for range 1000 {
			ch.Send(frame(1))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a full channel")
	}
}

func TestBoundedChannel_ReceiveTimeout(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(4)
	start := time.Now()
	_, ok := ch.Receive(context.Background(), 50*time.Millisecond)
	if ok {
		t.Fatal("Receive on empty channel: ok = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond || elapsed > time.Second {
		t.Errorf("Receive returned after %v, want about 50ms", elapsed)
	}
}

func TestBoundedChannel_ReceiveContextCancelled(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := ch.Receive(ctx, time.Minute); ok {
		t.Error("Receive with cancelled context: ok = true, want false")
	}
}

func TestBoundedChannel_ReceiveWakesOnSend(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(4)
	go func() {
		time.Sleep(20 * time.Millisecond)
		ch.Send(frame(7))
	}()
	f, ok := ch.Receive(context.Background(), 5*time.Second)
	if !ok {
		t.Fatal("Receive: ok = false, want true")
	}
	if f.Data[0] != 7 {
		t.Errorf("got frame %d, want 7", f.Data[0])
	}
}

func TestBoundedChannel_Clear(t *testing.T) {
	t.Parallel()
	ch := audio.NewBoundedChannel(10)
	for i := range 7 {
		ch.Send(frame(byte(i)))
	}
	ch.Clear()
	if ch.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", ch.Size())
	}
	if _, ok := ch.Receive(context.Background(), 10*time.Millisecond); ok {
		t.Error("Receive after Clear returned a pre-clear frame")
	}

	// Idempotent on an empty channel.
	ch.Clear()
	if ch.Size() != 0 {
		t.Errorf("Size() after second Clear = %d, want 0", ch.Size())
	}

	// Frames sent after Clear are delivered.
	ch.Send(frame(42))
	f, ok := ch.Receive(context.Background(), time.Second)
	if !ok || f.Data[0] != 42 {
		t.Errorf("Receive after Clear = (%v, %v), want frame 42", f.Data, ok)
	}
}

func TestBoundedChannel_ConcurrentSizeBound(t *testing.T) {
	t.Parallel()
	const capacity = 16
	ch := audio.NewBoundedChannel(capacity)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				ch.Send(frame(byte(i)))
				if s := ch.Size(); s > capacity {
					t.Errorf("Size() = %d exceeds capacity %d", s, capacity)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 500 {
			ch.Receive(ctx, time.Millisecond)
			if i := ch.Size(); i%3 == 0 {
				ch.Clear()
			}
		}
	}()
	wg.Wait()
}
