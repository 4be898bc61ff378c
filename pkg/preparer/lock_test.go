package preparer

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)

	lock, err := AcquireLock(path)
	require.NoError(t, err)

	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))

	_, err = AcquireLock(path)
	assert.Equal(t, ErrLocked, err)

	require.NoError(t, lock.Release())
	lock, err = AcquireLock(path)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}

func TestLockConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := AcquireLock(path)
			if err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
				return
			}
			assert.Equal(t, ErrLocked, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}

func TestLockStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)
	// far above any pid_max
	require.NoError(t, ioutil.WriteFile(path, []byte("1073741824"), 0644))

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	content, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))
	assert.NoError(t, lock.Release())
}

func TestLockUnreadableHolderKeepsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)
	require.NoError(t, ioutil.WriteFile(path, []byte("not a pid"), 0644))

	_, err := AcquireLock(path)
	assert.Equal(t, ErrLocked, err)
}
