package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripedSerializesSameKey(t *testing.T) {
	s := NewStriped()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("tag-a")
			defer unlock()
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestStripedDistinctKeysDoNotBlock(t *testing.T) {
	s := NewStriped()
	unlockA := s.Lock("tag-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := s.Lock("tag-b")
		defer unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on distinct key should not block")
	}
}

func TestDistributedWithNilClientDegradesToLocal(t *testing.T) {
	d := NewDistributed(nil)
	unlock, err := d.Lock(context.Background(), "tag-a")
	assert.NoError(t, err)
	assert.NotNil(t, unlock)
	unlock()
}
