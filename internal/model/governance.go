package model

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
)

// ChangeKind names the group setting a SettingsChange proposes to alter.
type ChangeKind string

// The fixed set of settings-change kinds the backend accepts.
const (
	ChangeContributionAmount    ChangeKind = "contribution_amount"
	ChangeContributionFrequency ChangeKind = "contribution_frequency"
	ChangeLoanInterestRate      ChangeKind = "loan_interest_rate"
	ChangeMaxLoanAmount         ChangeKind = "max_loan_amount"
	ChangeFineAmount            ChangeKind = "fine_amount"
	ChangeMemberRole            ChangeKind = "member_role"
	ChangeGroupClosure          ChangeKind = "group_closure"
)

// ChangeKinds lists every kind in display order.
var ChangeKinds = []ChangeKind{
	ChangeContributionAmount,
	ChangeContributionFrequency,
	ChangeLoanInterestRate,
	ChangeMaxLoanAmount,
	ChangeFineAmount,
	ChangeMemberRole,
	ChangeGroupClosure,
}

// Label is the human title for a change kind.
func (k ChangeKind) Label() string {
	switch k {
	case ChangeContributionAmount:
		return "Contribution amount"
	case ChangeContributionFrequency:
		return "Contribution frequency"
	case ChangeLoanInterestRate:
		return "Loan interest rate"
	case ChangeMaxLoanAmount:
		return "Maximum loan amount"
	case ChangeFineAmount:
		return "Fine amount"
	case ChangeMemberRole:
		return "Member role"
	case ChangeGroupClosure:
		return "Group closure"
	}
	return string(k)
}

// ChangeStatus is the server-owned state of a proposal.
type ChangeStatus string

// Change statuses.
const (
	ChangePending  ChangeStatus = "pending"
	ChangeApproved ChangeStatus = "approved"
	ChangeRejected ChangeStatus = "rejected"
)

// Vote is one approval or rejection of a settings change.
type Vote struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChangePayload is the kind-specific body of a settings change.
type ChangePayload interface {
	Kind() ChangeKind
	Validate() error
	Summary() string
}

// AmountChange carries a new monetary value (contribution, max loan, fine).
type AmountChange struct {
	kind     ChangeKind
	Previous decimal.Decimal `json:"previousAmount"`
	Proposed decimal.Decimal `json:"newAmount"`
}

// Kind implements ChangePayload.
func (c AmountChange) Kind() ChangeKind { return c.kind }

// Validate implements ChangePayload.
func (c AmountChange) Validate() error {
	if !c.Proposed.IsPositive() {
		return errors.NotValidf("%s of %s", c.kind.Label(), c.Proposed)
	}
	return nil
}

// Summary implements ChangePayload.
func (c AmountChange) Summary() string {
	return c.Previous.StringFixed(2) + " → " + c.Proposed.StringFixed(2)
}

// FrequencyChange moves the contribution schedule.
type FrequencyChange struct {
	Previous string `json:"previousFrequency"`
	Proposed string `json:"newFrequency"`
}

var contributionFrequencies = map[string]bool{
	"weekly": true, "biweekly": true, "monthly": true, "quarterly": true,
}

// Kind implements ChangePayload.
func (FrequencyChange) Kind() ChangeKind { return ChangeContributionFrequency }

// Validate implements ChangePayload.
func (c FrequencyChange) Validate() error {
	if !contributionFrequencies[c.Proposed] {
		return errors.NotValidf("contribution frequency %q", c.Proposed)
	}
	return nil
}

// Summary implements ChangePayload.
func (c FrequencyChange) Summary() string { return c.Previous + " → " + c.Proposed }

// RateChange moves the loan interest rate, in percent.
type RateChange struct {
	Previous decimal.Decimal `json:"previousRate"`
	Proposed decimal.Decimal `json:"newRate"`
}

// Kind implements ChangePayload.
func (RateChange) Kind() ChangeKind { return ChangeLoanInterestRate }

// Validate implements ChangePayload.
func (c RateChange) Validate() error {
	if c.Proposed.IsNegative() || c.Proposed.GreaterThan(decimal.NewFromInt(100)) {
		return errors.NotValidf("interest rate %s%%", c.Proposed)
	}
	return nil
}

// Summary implements ChangePayload.
func (c RateChange) Summary() string {
	return c.Previous.String() + "% → " + c.Proposed.String() + "%"
}

// RoleChange reassigns a member's office.
type RoleChange struct {
	MemberID     string `json:"memberId"`
	MemberName   string `json:"memberName,omitempty"`
	PreviousRole Role   `json:"previousRole,omitempty"`
	ProposedRole Role   `json:"newRole"`
}

// Kind implements ChangePayload.
func (RoleChange) Kind() ChangeKind { return ChangeMemberRole }

// Validate implements ChangePayload.
func (c RoleChange) Validate() error {
	if c.MemberID == "" {
		return errors.NotValidf("role change without member")
	}
	switch c.ProposedRole {
	case RoleAdmin, RoleChair, RoleTreasurer, RoleSecretary, RoleMember:
		return nil
	}
	return errors.NotValidf("role %q", c.ProposedRole)
}

// Summary implements ChangePayload.
func (c RoleChange) Summary() string {
	name := c.MemberName
	if name == "" {
		name = c.MemberID
	}
	return name + ": " + string(c.PreviousRole) + " → " + string(c.ProposedRole)
}

// ClosureChange proposes winding the group up.
type ClosureChange struct {
	ClosureRequest
}

// Kind implements ChangePayload.
func (ClosureChange) Kind() ChangeKind { return ChangeGroupClosure }

// Summary implements ChangePayload.
func (c ClosureChange) Summary() string {
	return "close group, " + string(c.Distribution) + " distribution"
}

// SettingsChange is a pending governance proposal.
type SettingsChange struct {
	ID         string        `json:"id"`
	ChamaID    string        `json:"chamaId"`
	Kind       ChangeKind    `json:"changeType"`
	ProposedBy string        `json:"proposedBy"`
	Status     ChangeStatus  `json:"status"`
	Payload    ChangePayload `json:"-"`
	Approvals  []Vote        `json:"approvals"`
	Rejections []Vote        `json:"rejections"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type settingsChangeWire struct {
	ID         string          `json:"id"`
	ChamaID    string          `json:"chamaId"`
	Kind       ChangeKind      `json:"changeType"`
	ProposedBy string          `json:"proposedBy"`
	Status     ChangeStatus    `json:"status"`
	Payload    json.RawMessage `json:"payload"`
	Approvals  []Vote          `json:"approvals"`
	Rejections []Vote          `json:"rejections"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// UnmarshalJSON decodes the payload according to changeType and validates it.
func (c *SettingsChange) UnmarshalJSON(data []byte) error {
	var w settingsChangeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Trace(err)
	}
	payload, err := DecodeChangePayload(w.Kind, w.Payload)
	if err != nil {
		return errors.Annotatef(err, "settings change %s", w.ID)
	}
	switch w.Status {
	case ChangePending, ChangeApproved, ChangeRejected:
	case "":
		w.Status = ChangePending
	default:
		return errors.NotValidf("settings change %s status %q", w.ID, w.Status)
	}
	*c = SettingsChange{
		ID:         w.ID,
		ChamaID:    w.ChamaID,
		Kind:       w.Kind,
		ProposedBy: w.ProposedBy,
		Status:     w.Status,
		Payload:    payload,
		Approvals:  w.Approvals,
		Rejections: w.Rejections,
		CreatedAt:  w.CreatedAt,
	}
	return nil
}

// MarshalJSON writes the payload back under its discriminator.
func (c SettingsChange) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if c.Payload != nil {
		b, err := json.Marshal(c.Payload)
		if err != nil {
			return nil, errors.Trace(err)
		}
		raw = b
	}
	return json.Marshal(settingsChangeWire{
		ID:         c.ID,
		ChamaID:    c.ChamaID,
		Kind:       c.Kind,
		ProposedBy: c.ProposedBy,
		Status:     c.Status,
		Payload:    raw,
		Approvals:  c.Approvals,
		Rejections: c.Rejections,
		CreatedAt:  c.CreatedAt,
	})
}

// DecodeChangePayload decodes raw into the record for kind and validates it.
func DecodeChangePayload(kind ChangeKind, raw json.RawMessage) (ChangePayload, error) {
	var p ChangePayload
	switch kind {
	case ChangeContributionAmount, ChangeMaxLoanAmount, ChangeFineAmount:
		var a AmountChange
		if err := unmarshalPayload(raw, &a); err != nil {
			return nil, err
		}
		a.kind = kind
		p = a
	case ChangeContributionFrequency:
		var f FrequencyChange
		if err := unmarshalPayload(raw, &f); err != nil {
			return nil, err
		}
		p = f
	case ChangeLoanInterestRate:
		var r RateChange
		if err := unmarshalPayload(raw, &r); err != nil {
			return nil, err
		}
		p = r
	case ChangeMemberRole:
		var r RoleChange
		if err := unmarshalPayload(raw, &r); err != nil {
			return nil, err
		}
		p = r
	case ChangeGroupClosure:
		var cl ClosureChange
		if err := unmarshalPayload(raw, &cl); err != nil {
			return nil, err
		}
		p = cl
	default:
		return nil, errors.NotValidf("change kind %q", kind)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.NotValidf("empty payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Annotate(err, "decoding payload")
	}
	return nil
}

// HasVoted reports whether userID already approved or rejected the change.
func (c SettingsChange) HasVoted(userID string) bool {
	for _, v := range c.Approvals {
		if v.UserID == userID {
			return true
		}
	}
	for _, v := range c.Rejections {
		if v.UserID == userID {
			return true
		}
	}
	return false
}

// VoteRequest is the body submitted when a member votes on a change.
type VoteRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Validate requires a reason for rejections.
func (v VoteRequest) Validate() error {
	if !v.Approve && v.Reason == "" {
		return errors.NotValidf("rejection without a reason")
	}
	return nil
}
