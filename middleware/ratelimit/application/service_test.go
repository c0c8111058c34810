package application

import (
	"testing"
	"time"

	"cache-gateway/middleware/ratelimit/domain"
)

type fakeAdmitter struct {
	dec  domain.Decision
	keys []domain.Key
}

func (f *fakeAdmitter) Admit(k domain.Key) domain.Decision {
	f.keys = append(f.keys, k)
	return f.dec
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PassesKeyAndRemaining(t *testing.T) {
	store := &fakeAdmitter{dec: domain.Decision{Allowed: true, Remaining: 7, Limit: 10}}
	svc := Service{Store: store, RetryAfter: 5 * time.Second}

	dec := svc.Decide("client-1")
	if !dec.Allowed || dec.Remaining != 7 || dec.Limit != 10 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if len(store.keys) != 1 || store.keys[0] != "client-1" {
		t.Fatalf("expected store to be called with key, got %v", store.keys)
	}
}

func TestService_Decide_KeepsStoreRetryHint(t *testing.T) {
	store := &fakeAdmitter{dec: domain.Decision{Allowed: false, RetryAfter: 6 * time.Second}}
	svc := Service{Store: store, RetryAfter: time.Second}

	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 6*time.Second {
		t.Fatalf("expected store RetryAfter=6s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Store: &fakeAdmitter{dec: domain.Decision{Allowed: false, Remaining: 3}}}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0 on denial, got %d", dec.Remaining)
	}
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Store: &fakeAdmitter{dec: domain.Decision{Allowed: false}}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide("k")
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}
