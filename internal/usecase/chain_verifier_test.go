package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/infra/crypto"
)

func newVerifierFixture(maxEvents int) (*ChainVerifier, *subjectRepoStub, *eventRepoStub) {
	subjects := &subjectRepoStub{}
	events := &eventRepoStub{hasher: crypto.NewEventHasher(crypto.SHA256())}
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	v := NewChainVerifier(events, subjects, crypto.NewEventHasher(crypto.SHA256()), fixedClock(now), nil, maxEvents, 0)
	return v, subjects, events
}

func seedChain(t *testing.T, events *eventRepoStub, tenantID, subjectID string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if _, err := events.Append(context.Background(), domain.Event{
			TenantID:  tenantID,
			SubjectID: subjectID,
			EventType: "observation",
			EventTime: base.Add(time.Duration(i) * time.Minute),
			Payload:   map[string]any{"n": float64(i)},
		}); err != nil {
			t.Fatalf("seed chain: %v", err)
		}
	}
}

func TestChainVerifier_IntactChain(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 4)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.ChainValid || report.TotalEvents != 4 || report.ValidEvents != 4 || len(report.Checks) != 0 {
		t.Fatalf("intact chain must verify clean, got %+v", report)
	}
}

func TestChainVerifier_TamperedPayload(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 3)
	events.events[1].Payload["n"] = float64(99)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.ChainValid || report.InvalidEvents != 1 {
		t.Fatalf("tampered payload must fail exactly one check, got %+v", report)
	}
	check := report.Checks[0]
	if check.ErrorType != domain.CheckHashMismatch || check.Sequence != 1 {
		t.Fatalf("expected HASH_MISMATCH at sequence 1, got %+v", check)
	}
}

func TestChainVerifier_BrokenLink(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 3)
	events.events[2].PreviousHash = strings.Repeat("ab", 32)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Checks[0].ErrorType != domain.CheckChainBreak || report.Checks[0].Sequence != 2 {
		t.Fatalf("expected CHAIN_BREAK at sequence 2, got %+v", report.Checks)
	}
}

func TestChainVerifier_GenesisViolation(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 1)
	events.events[0].PreviousHash = strings.Repeat("cd", 32)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Checks[0].ErrorType != domain.CheckGenesisError {
		t.Fatalf("expected GENESIS_ERROR, got %+v", report.Checks)
	}
}

func TestChainVerifier_AlgorithmMismatch(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 1)
	// A sha512-length digest under a sha256 verifier.
	events.events[0].Hash = strings.Repeat("ef", 64)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Checks[0].ErrorType != domain.CheckAlgMismatch {
		t.Fatalf("expected ALG_MISMATCH, got %+v", report.Checks)
	}
}

func TestChainVerifier_MaxEventsTruncates(t *testing.T) {
	v, subjects, events := newVerifierFixture(2)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 5)

	report, err := v.VerifySubject(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Truncated || report.TotalEvents != 2 {
		t.Fatalf("expected truncation after 2 events, got %+v", report)
	}
}

func TestChainVerifier_VerifyTenantAggregates(t *testing.T) {
	v, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	subjects.add("s2", "t1", "patient")
	seedChain(t, events, "t1", "s1", 2)
	seedChain(t, events, "t1", "s2", 3)
	events.events[3].Payload["n"] = float64(42)

	report, err := v.VerifyTenant(context.Background(), "t1")
	if err != nil {
		t.Fatalf("verify tenant: %v", err)
	}
	if report.TotalEvents != 5 || report.InvalidEvents != 1 || report.ChainValid {
		t.Fatalf("unexpected tenant report %+v", report)
	}
	if report.Checks[0].SubjectID != "s2" {
		t.Fatalf("check must carry the owning subject, got %+v", report.Checks[0])
	}
}

func TestChainVerifier_UnknownSubject(t *testing.T) {
	v, _, _ := newVerifierFixture(0)
	if _, err := v.VerifySubject(context.Background(), "t1", "ghost"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
