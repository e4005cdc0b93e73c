package integrity

import (
	"strings"
	"testing"
	"time"

	"github.com/mnemex-labs/mnemex/internal/model"
)

func sampleLog() model.AccessLog {
	return model.AccessLog{
		LogID:    "log_1",
		Time:     time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		TenantID: "tenant-a",
		Caller:   model.Caller{ClientID: "app-1"},
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "user-1"},
		Purpose:  model.PurposeChatResponse,
		Query:    model.AccessQuery{Op: model.OpQuery},
		Decision: model.AccessDecision{Allowed: true, ReturnedIDs: []string{"mem-1"}},
	}
}

func TestComputeAccessLogHash_Deterministic(t *testing.T) {
	l := sampleLog()

	h1 := ComputeAccessLogHash(l)
	h2 := ComputeAccessLogHash(l)

	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
	if !strings.HasPrefix(h1, "v2:") {
		t.Fatalf("expected v2: prefix, got %q", h1)
	}
	if len(h1) != 67 {
		t.Fatalf("expected 67-char hash (3 prefix + 64 hex), got %d chars", len(h1))
	}
}

func TestComputeAccessLogHash_NanosecondNoiseIgnored(t *testing.T) {
	l1 := sampleLog()
	l2 := sampleLog()
	l2.Time = l2.Time.Add(500 * time.Nanosecond)

	if ComputeAccessLogHash(l1) != ComputeAccessLogHash(l2) {
		t.Fatal("sub-microsecond time differences should not change the hash")
	}
}

func TestComputeAccessLogHash_DifferentInputs(t *testing.T) {
	l1 := sampleLog()
	l2 := sampleLog()
	l2.Decision.ReturnedIDs = []string{"mem-2"}

	if ComputeAccessLogHash(l1) == ComputeAccessLogHash(l2) {
		t.Fatal("different decisions should produce different hashes")
	}
}

func TestVerifyAccessLogHash(t *testing.T) {
	l := sampleLog()
	hash := ComputeAccessLogHash(l)

	if !VerifyAccessLogHash(hash, l) {
		t.Fatal("verification should succeed for an unmodified log")
	}

	tampered := l
	tampered.Decision.ReturnedIDs = []string{"mem-9"}
	if VerifyAccessLogHash(hash, tampered) {
		t.Fatal("verification should fail once the decision is modified")
	}

	if VerifyAccessLogHash("tampered_hash", l) {
		t.Fatal("verification should fail for a corrupted hash")
	}
}
