package core

import (
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// goroutineID returns the current goroutine's ID.
// Only used to recognise the dispatch goroutine in Send; never for scheduling.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack trace starts with "goroutine NNN ["
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

func newContextName() string {
	return "single-thread-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
