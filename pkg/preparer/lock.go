package preparer

import (
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrLocked means someone else holds the lock.
var ErrLocked = errors.New("lock is held")

// Lock is a pid file created exclusively; holding it means this
// process is preparing the directory it's in.
type Lock struct {
	path string
}

// AcquireLock never blocks. If the pid file exists but names a process
// that no longer exists, the stale file is replaced; a live holder,
// including this process, keeps it.
func AcquireLock(path string) (*Lock, error) {
	err := createPidFile(path)
	if err == nil {
		return &Lock{path: path}, nil
	}
	if !os.IsExist(err) {
		return nil, err
	}
	ok, err := breakStaleLock(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{path: path}, nil
}

func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func createPidFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// breakStaleLock takes over the pid file at path if its holder is
// dead. Only one process may try at a time: the attempt happens under
// an flock on a sibling file, and gives up if that is busy.
func breakStaleLock(path string) (bool, error) {
	guard := flock.New(path + ".lock")
	locked, err := guard.TryLock()
	if err != nil || !locked {
		return false, err
	}
	defer guard.Unlock()

	content, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		// released since we looked
		return claim(path)
	}
	if err != nil {
		return false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || processAlive(pid) {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return claim(path)
}

func claim(path string) (bool, error) {
	err := createPidFile(path)
	if os.IsExist(err) {
		return false, nil
	}
	return err == nil, err
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return true
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
