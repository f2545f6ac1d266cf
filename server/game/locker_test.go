package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockerSerialisesPerKey(t *testing.T) {
	l := newLocker()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("a")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.size())
}

func TestLockerKeysAreIndependent(t *testing.T) {
	l := newLocker()
	unlockA := l.lock("a")
	unlockB := l.lock("b")
	assert.Equal(t, 2, l.size())
	unlockA()
	unlockB()
	assert.Zero(t, l.size())
}
