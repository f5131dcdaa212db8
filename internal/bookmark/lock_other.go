//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package bookmark

import (
	"os"
	"sync"
)

// Platforms without flock fall back to a process-local lock per path.
var (
	pathLocksMu sync.Mutex
	pathLocks   = map[string]*sync.RWMutex{}
	heldShared  sync.Map // *os.File -> bool
)

func pathLock(name string) *sync.RWMutex {
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()
	l, ok := pathLocks[name]
	if !ok {
		l = new(sync.RWMutex)
		pathLocks[name] = l
	}
	return l
}

func lockFile(f *os.File, exclusive bool) error {
	l := pathLock(f.Name())
	if exclusive {
		l.Lock()
	} else {
		l.RLock()
	}
	heldShared.Store(f, !exclusive)
	return nil
}

func unlockFile(f *os.File) error {
	v, ok := heldShared.LoadAndDelete(f)
	if !ok {
		return nil
	}
	l := pathLock(f.Name())
	if v.(bool) {
		l.RUnlock()
	} else {
		l.Unlock()
	}
	return nil
}
