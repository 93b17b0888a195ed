package redis

import (
	"testing"
	"time"
)

func TestKeys(t *testing.T) {
	if got := opinionKey(42); got != "opinion:42" {
		t.Errorf("opinionKey = %q", got)
	}
	if got := lockKey("flow:0xabc"); got != "lock:flow:0xabc" {
		t.Errorf("lockKey = %q", got)
	}
}

func TestRateLimitKey_Buckets(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	a := rateLimitKey("ip", time.Minute, base)
	b := rateLimitKey("ip", time.Minute, base.Add(30*time.Second))
	c := rateLimitKey("ip", time.Minute, base.Add(2*time.Minute))
	if a == c {
		t.Errorf("Expected different windows, got %q twice", a)
	}
	if base.UnixMilli()/60000 == base.Add(30*time.Second).UnixMilli()/60000 && a != b {
		t.Errorf("Expected same window, got %q and %q", a, b)
	}
}
