// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockSet(t *testing.T) {
	clock := Fake(epoch)
	target := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(target)
	if got := clock.Now(); !got.Equal(target) {
		t.Fatalf("Now() after Set = %v, want %v", got, target)
	}
	clock.Advance(-time.Hour)
	if got := clock.Now(); !got.Equal(target.Add(-time.Hour)) {
		t.Fatalf("Now() after negative Advance = %v", got)
	}
}

func TestFakeClockConcurrentAdvance(t *testing.T) {
	clock := Fake(epoch)
	var wait sync.WaitGroup
	for range 50 {
		wait.Add(1)
		go func() {
			defer wait.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wait.Wait()
	if got := clock.Now(); !got.Equal(epoch.Add(50 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", got, epoch.Add(50*time.Second))
	}
}

func TestRealClockAdvances(t *testing.T) {
	clock := Real()
	first := clock.Now()
	if first.IsZero() {
		t.Fatal("Real().Now() returned zero time")
	}
}
