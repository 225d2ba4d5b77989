package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("client-1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("client-1") {
		t.Errorf("4th request within window should be denied")
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	fakeNow := time.Now()
	l := New(time.Minute, 1)
	l.now = func() time.Time { return fakeNow }

	if !l.Allow("client-1") {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow("client-1") {
		t.Fatalf("second request in same window should be denied")
	}

	fakeNow = fakeNow.Add(time.Minute + time.Second)
	if !l.Allow("client-1") {
		t.Errorf("request after window elapsed should be allowed")
	}
}

func TestIndependentClients(t *testing.T) {
	l := New(time.Minute, 1)

	if !l.Allow("a") {
		t.Fatalf("client a first request should be allowed")
	}
	if !l.Allow("b") {
		t.Errorf("client b should have its own independent bucket")
	}
}

func TestSweepRemovesExpiredBuckets(t *testing.T) {
	fakeNow := time.Now()
	l := New(time.Minute, 1)
	l.now = func() time.Time { return fakeNow }

	l.Allow("a")
	fakeNow = fakeNow.Add(2 * time.Minute)

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after sweep", l.Len())
	}
}
