package troupe

import (
	"log"
	"time"
)

// Subscription is a fan-out registry of outbound channels for one action
// category. It is not safe for concurrent use; each Subscription is owned by
// exactly one actor's worker goroutine.
//
// Two broadcast modes are offered. Broadcast is best-effort: an action that
// cannot be delivered (full channel) is dropped for that subscriber and
// delivery to the rest continues. BroadcastPrune additionally drops
// subscribers whose channel has been closed, so a departed actor stops
// costing anything on the next broadcast.
type Subscription[A any] struct {
	subscribers []chan<- A
}

// Subscribe registers c. Subscribing an already registered channel is a
// no-op, so a subscriber is never delivered the same action twice.
func (s *Subscription[A]) Subscribe(c chan<- A) {
	for _, existing := range s.subscribers {
		if existing == c {
			return
		}
	}
	s.subscribers = append(s.subscribers, c)
}

// Unsubscribe removes c. Unknown channels are ignored.
func (s *Subscription[A]) Unsubscribe(c chan<- A) {
	for i, existing := range s.subscribers {
		if existing == c {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Len reports the number of registered subscribers.
func (s *Subscription[A]) Len() int { return len(s.subscribers) }

// Broadcast delivers action to every subscriber, ignoring failures. It never
// blocks.
func (s *Subscription[A]) Broadcast(action A) {
	for _, c := range s.subscribers {
		if !trySendOpen(c, action) {
			log.Printf("subscription: dropping broadcast to closed channel")
		}
	}
}

// BroadcastPrune delivers action to every subscriber, removing any whose
// channel is closed. A full (but open) channel drops this action only and
// stays subscribed.
func (s *Subscription[A]) BroadcastPrune(action A) {
	kept := s.subscribers[:0]
	for _, c := range s.subscribers {
		if trySendOpen(c, action) {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.subscribers); i++ {
		s.subscribers[i] = nil
	}
	s.subscribers = kept
}

// trySendOpen attempts a non-blocking send and reports whether the channel
// is still open. Sends dropped because the channel is full count as open.
func trySendOpen[A any](c chan<- A, v A) (open bool) {
	defer func() {
		if recover() != nil {
			open = false
		}
	}()
	select {
	case c <- v:
	default:
	}
	return true
}

// TrySend is a non-blocking send. It reports whether the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from c or until t passes.
// ok is false on timeout or if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
