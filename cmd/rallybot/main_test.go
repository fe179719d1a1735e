package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A pass started through one trigger must block passes from every other
// trigger: two concurrent entries would both see a record without its
// remote identifier and create the scheduled event twice.
func TestSyncRunner_SerializesAllTriggers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	runner := &syncRunner{run: func() {
		close(started)
		<-release
	}}

	// A scheduled-style pass holds the lock...
	go func() {
		defer close(done)
		assert.True(t, runner.TryRun())
	}()
	<-started

	// ...so a manual trigger is refused instead of running concurrently.
	assert.False(t, runner.TryRunAsync(), "manual trigger must not overlap a running pass")
	assert.False(t, runner.TryRun())

	close(release)
	<-done

	// Once the pass finishes, the next trigger runs normally.
	ran := false
	runner.run = func() { ran = true }
	require.True(t, runner.TryRun())
	assert.True(t, ran)
}

func TestSyncRunner_AsyncReleasesLock(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	runner := &syncRunner{run: func() {
		<-release
		close(finished)
	}}

	require.True(t, runner.TryRunAsync())
	assert.False(t, runner.TryRunAsync(), "second async trigger is refused while the first runs")

	close(release)
	<-finished

	// The background pass releases the lock when it completes.
	require.Eventually(t, func() bool {
		if !runner.mu.TryLock() {
			return false
		}
		runner.mu.Unlock()
		return true
	}, time.Second, 5*time.Millisecond)
}
