package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PendingReply is a reply read off the wire for a counter nobody was
// waiting on at the time.
type PendingReply struct {
	Counter    uint16
	Frame      []byte
	ReceivedAt time.Time
}

// ReplyStash holds pending replies by counter until their waiter takes them.
type ReplyStash struct {
	mu    sync.Mutex
	items map[uint16]PendingReply
}

func NewReplyStash() *ReplyStash {
	return &ReplyStash{
		items: make(map[uint16]PendingReply),
	}
}

// Put stores frame under counter. A second reply for a counter that was not
// taken yet means the wire is out of step with us; it is reported, never
// overwritten.
func (s *ReplyStash) Put(counter uint16, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[counter]; ok {
		return fmt.Errorf("%w: counter=%d", ErrDuplicateCounter, counter)
	}
	s.items[counter] = PendingReply{
		Counter:    counter,
		Frame:      frame,
		ReceivedAt: time.Now(),
	}
	return nil
}

// Take removes and returns the reply for counter, if present.
func (s *ReplyStash) Take(counter uint16) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[counter]
	if !ok {
		return nil, false
	}
	delete(s.items, counter)
	return item.Frame, true
}

func (s *ReplyStash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *ReplyStash) List() []PendingReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingReply, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Counter < out[j].Counter
	})
	return out
}
