package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "session-lock", TTL: time.Second, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerializes(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "demo", func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "demo", func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Equal(t, []string{"first"}, order)
	mu.Unlock()
	close(releaseFirst)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	locker, mr := newLocker(t)
	release, err := locker.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, mr.Exists("session-lock:s1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "s1")
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	release()
	require.False(t, mr.Exists("session-lock:s1"))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newLocker(t)
	release, err := locker.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	require.NoError(t, mr.Set("session-lock:s1", "someone-else"))
	release()
	require.True(t, mr.Exists("session-lock:s1"))
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "s2", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("session-lock:s2"))
}

func TestLockExpires(t *testing.T) {
	locker, mr := newLocker(t)
	_, err := locker.Acquire(context.Background(), "s3")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	release, err := locker.Acquire(context.Background(), "s3")
	require.NoError(t, err)
	release()
}
