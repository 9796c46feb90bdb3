package ratelimit

import "testing"

func TestAllowConsumesBurst(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a", 3, 0.001) {
			t.Fatalf("request %d within burst was rejected", i)
		}
	}
	if l.Allow("client-a", 3, 0.001) {
		t.Fatal("request beyond burst was allowed")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New()

	if !l.Allow("client-a", 1, 0.001) {
		t.Fatal("first request for client-a rejected")
	}
	if l.Allow("client-a", 1, 0.001) {
		t.Fatal("client-a bucket should be empty")
	}
	if !l.Allow("client-b", 1, 0.001) {
		t.Fatal("client-b must have its own bucket")
	}
}
