package session

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/ev3ctl/internal/testutil/testlog"
)

func TestReplyStashTakeOnce(t *testing.T) {
	testlog.Start(t)
	s := NewReplyStash()
	want := []byte{0x03, 0x00, 0x07, 0x00, 0x02}
	if err := s.Put(7, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := s.Take(7)
	if !ok || !bytes.Equal(got, want) {
		t.Fatalf("take got=% X ok=%v", got, ok)
	}
	if _, ok := s.Take(7); ok {
		t.Fatalf("second take should find nothing")
	}
	if s.Len() != 0 {
		t.Fatalf("stash not empty: %d", s.Len())
	}
}

func TestReplyStashRejectsDuplicate(t *testing.T) {
	testlog.Start(t)
	s := NewReplyStash()
	if err := s.Put(9, []byte{1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(9, []byte{2}); !errors.Is(err, ErrDuplicateCounter) {
		t.Fatalf("expected ErrDuplicateCounter, got %v", err)
	}
	got, _ := s.Take(9)
	if !bytes.Equal(got, []byte{1}) {
		t.Fatalf("duplicate overwrote stored reply: % X", got)
	}
	if err := s.Put(9, []byte{3}); err != nil {
		t.Fatalf("put after take: %v", err)
	}
}

func TestReplyStashListSorted(t *testing.T) {
	testlog.Start(t)
	s := NewReplyStash()
	for _, c := range []uint16{30, 10, 20} {
		if err := s.Put(c, []byte{byte(c)}); err != nil {
			t.Fatalf("put %d: %v", c, err)
		}
	}
	list := s.List()
	if len(list) != 3 || list[0].Counter != 10 || list[1].Counter != 20 || list[2].Counter != 30 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestReplyStashConcurrentPutTake(t *testing.T) {
	testlog.Start(t)
	s := NewReplyStash()
	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(c uint16) {
			defer wg.Done()
			if err := s.Put(c, []byte{byte(c)}); err != nil {
				t.Errorf("put %d: %v", c, err)
			}
		}(uint16(i))
	}
	wg.Wait()
	taken := make(chan uint16, 200)
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(c uint16) {
			defer wg.Done()
			if _, ok := s.Take(c); ok {
				taken <- c
			}
		}(uint16(i))
	}
	wg.Wait()
	close(taken)
	n := 0
	for range taken {
		n++
	}
	if n != 200 || s.Len() != 0 {
		t.Fatalf("taken=%d remaining=%d", n, s.Len())
	}
}
