package actors

import (
	"github.com/sasha-s/go-deadlock"
)

var terminateChan chan struct{}
var terminated bool
var terminateMutex = &deadlock.Mutex{}
var waitGroup = &deadlock.WaitGroup{}

func SetTerminateChan(term chan struct{}) {
	terminateMutex.Lock()
	defer terminateMutex.Unlock()
	terminateChan = term
	terminated = false
}

func GetTerminateChan() chan struct{} {
	return terminateChan
}

// GetWaitGroup tracks long running goroutines that must finish their
// shutdown hooks before the process exits.
func GetWaitGroup() *deadlock.WaitGroup {
	return waitGroup
}

// Shutdown closes the terminate channel and waits for every goroutine
// registered on the wait group. Calling it more than once only waits.
func Shutdown() {
	terminateMutex.Lock()
	if !terminated {
		close(terminateChan)
		terminated = true
	}
	terminateMutex.Unlock()
	waitGroup.Wait()
}
