package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultChannelCapacity is the number of frames a [BoundedChannel] holds when
// no explicit capacity is given (about 3.2s of 512-sample frames at 16kHz).
const DefaultChannelCapacity = 100

// BoundedChannel is a fixed-capacity FIFO queue of [AudioFrame] values
// connecting the capture callback (producer) to the interaction loop
// (consumer).
//
// Send never blocks: when the queue is full the incoming frame is discarded.
// Receive blocks for at most the given timeout. Clear discards everything that
// is buffered in one atomic step.
//
// All methods are safe for concurrent use.
type BoundedChannel struct {
	mu    sync.Mutex
	buf   []AudioFrame
	head  int
	size  int
	ready chan struct{}

	dropped atomic.Uint64
}

// NewBoundedChannel creates a channel holding at most capacity frames.
// A non-positive capacity selects [DefaultChannelCapacity].
func NewBoundedChannel(capacity int) *BoundedChannel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &BoundedChannel{
		buf:   make([]AudioFrame, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Send enqueues frame without blocking. It reports false when the queue was
// full and the frame was dropped.
func (c *BoundedChannel) Send(frame AudioFrame) bool {
	c.mu.Lock()
	if c.size == len(c.buf) {
		c.mu.Unlock()
		c.dropped.Add(1)
		return false
	}
	c.buf[(c.head+c.size)%len(c.buf)] = frame
	c.size++
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// Receive dequeues the oldest frame, waiting up to timeout for one to arrive.
// ok is false when the timeout elapsed or ctx was cancelled first.
func (c *BoundedChannel) Receive(ctx context.Context, timeout time.Duration) (AudioFrame, bool) {
	if f, ok := c.pop(); ok {
		return f, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.ready:
			if f, ok := c.pop(); ok {
				return f, true
			}
			// Signal raced with Clear or another receiver; keep waiting.
		case <-timer.C:
			return c.pop()
		case <-ctx.Done():
			return AudioFrame{}, false
		}
	}
}

func (c *BoundedChannel) pop() (AudioFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.size == 0 {
		return AudioFrame{}, false
	}
	f := c.buf[c.head]
	c.buf[c.head] = AudioFrame{}
	c.head = (c.head + 1) % len(c.buf)
	c.size--
	return f, true
}

// Clear discards every buffered frame. Frames sent after Clear returns are
// delivered normally. Clearing an empty channel is a no-op.
func (c *BoundedChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.size {
		c.buf[(c.head+i)%len(c.buf)] = AudioFrame{}
	}
	c.head = 0
	c.size = 0
}

// Size returns the number of buffered frames.
func (c *BoundedChannel) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Cap returns the maximum number of frames the channel holds.
func (c *BoundedChannel) Cap() int { return len(c.buf) }

// Dropped returns the number of frames discarded by Send because the channel
// was full.
func (c *BoundedChannel) Dropped() uint64 { return c.dropped.Load() }
