package model

import (
	"encoding/json"
	"testing"

	"github.com/juju/errors"
)

func TestSettingsChange_DecodesPayloadByKind(t *testing.T) {
	raw := `{
		"id": "sc1",
		"chamaId": "c1",
		"changeType": "loan_interest_rate",
		"proposedBy": "u1",
		"status": "pending",
		"payload": {"previousRate": "10", "newRate": 12.5},
		"approvals": [{"userId": "u2", "createdAt": "2025-06-01T10:00:00Z"}],
		"rejections": []
	}`

	var sc SettingsChange
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rate, ok := sc.Payload.(RateChange)
	if !ok {
		t.Fatalf("payload type = %T, want RateChange", sc.Payload)
	}
	if rate.Proposed.String() != "12.5" {
		t.Errorf("Proposed = %s, want 12.5", rate.Proposed)
	}
	if !sc.HasVoted("u2") {
		t.Error("HasVoted(u2) = false, want true")
	}
	if sc.HasVoted("u3") {
		t.Error("HasVoted(u3) = true, want false")
	}
}

func TestSettingsChange_AmountKindsShareRecord(t *testing.T) {
	for _, kind := range []ChangeKind{ChangeContributionAmount, ChangeMaxLoanAmount, ChangeFineAmount} {
		p, err := DecodeChangePayload(kind, json.RawMessage(`{"previousAmount": 500, "newAmount": "750"}`))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if p.Kind() != kind {
			t.Errorf("Kind() = %s, want %s", p.Kind(), kind)
		}
		if got := p.Summary(); got != "500.00 → 750.00" {
			t.Errorf("%s Summary() = %q", kind, got)
		}
	}
}

func TestSettingsChange_RejectsUnknownKind(t *testing.T) {
	raw := `{"id":"sc2","changeType":"rename_group","payload":{"name":"x"}}`
	var sc SettingsChange
	err := json.Unmarshal([]byte(raw), &sc)
	if err == nil {
		t.Fatal("expected error for unknown change kind")
	}
	if !errors.Is(err, errors.NotValid) {
		t.Errorf("error = %v, want NotValid", err)
	}
}

func TestSettingsChange_RejectsInvalidPayload(t *testing.T) {
	cases := []struct {
		kind ChangeKind
		raw  string
	}{
		{ChangeContributionAmount, `{"newAmount": 0}`},
		{ChangeContributionFrequency, `{"newFrequency": "daily"}`},
		{ChangeLoanInterestRate, `{"newRate": 140}`},
		{ChangeMemberRole, `{"newRole": "treasurer"}`},
		{ChangeGroupClosure, `{"reason": "short", "distributionMethod": "equal"}`},
		{ChangeFineAmount, `null`},
	}
	for _, tc := range cases {
		if _, err := DecodeChangePayload(tc.kind, json.RawMessage(tc.raw)); err == nil {
			t.Errorf("%s %s: expected validation error", tc.kind, tc.raw)
		}
	}
}

func TestSettingsChange_MarshalRoundTripKeepsDiscriminator(t *testing.T) {
	in := SettingsChange{
		ID:     "sc3",
		Kind:   ChangeMemberRole,
		Status: ChangePending,
		Payload: RoleChange{
			MemberID:     "m1",
			ProposedRole: RoleTreasurer,
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out SettingsChange
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	role, ok := out.Payload.(RoleChange)
	if !ok || role.ProposedRole != RoleTreasurer {
		t.Fatalf("payload = %#v", out.Payload)
	}
}

func TestVoteRequest_RejectionNeedsReason(t *testing.T) {
	if err := (VoteRequest{Approve: false}).Validate(); err == nil {
		t.Error("rejection without reason validated")
	}
	if err := (VoteRequest{Approve: true}).Validate(); err != nil {
		t.Errorf("approval: %v", err)
	}
}
