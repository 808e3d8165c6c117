package library

import (
	"github.com/sasha-s/go-deadlock"
)

// ValidateSaneExecutionTime holds a deadlock.Mutex until the returned func is
// called. If the caller takes longer than the deadlock detector's timeout the
// detector reports it with both stacks.
func ValidateSaneExecutionTime() func() {
	mu := deadlock.Mutex{}
	mu.Lock()
	go func() {
		mu.Lock()
		mu.Unlock()
	}()
	return func() {
		mu.Unlock()
	}
}
