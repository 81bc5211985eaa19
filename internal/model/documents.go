package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
)

// DocumentKind classifies uploaded group documents.
type DocumentKind string

// Document kinds.
const (
	DocConstitution    DocumentKind = "constitution"
	DocMinutes         DocumentKind = "minutes"
	DocFinancialReport DocumentKind = "financial_report"
	DocAgreement       DocumentKind = "agreement"
	DocOther           DocumentKind = "other"
)

// DocumentKinds lists every kind in display order.
var DocumentKinds = []DocumentKind{DocConstitution, DocMinutes, DocFinancialReport, DocAgreement, DocOther}

// Document is a file the group keeps on record.
type Document struct {
	ID         string       `json:"id,omitempty"`
	ChamaID    string       `json:"chamaId"`
	Title      string       `json:"title"`
	Kind       DocumentKind `json:"type"`
	URL        string       `json:"url"`
	UploadedBy string       `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time    `json:"createdAt,omitempty"`
}

// Validate checks the fields a new document needs before submission.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.NotValidf("document without title")
	}
	if !validDocumentKind(d.Kind) {
		return errors.NotValidf("document type %q", d.Kind)
	}
	u, err := url.Parse(d.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NotValidf("document url %q", d.URL)
	}
	return nil
}

func validDocumentKind(k DocumentKind) bool {
	for _, known := range DocumentKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Policy is a written group rule.
type Policy struct {
	ID            string     `json:"id,omitempty"`
	ChamaID       string     `json:"chamaId"`
	Title         string     `json:"title"`
	Body          string     `json:"content"`
	Category      string     `json:"category,omitempty"`
	EffectiveFrom *time.Time `json:"effectiveDate,omitempty"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
}

// Validate checks the fields a new policy needs before submission.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.NotValidf("policy without title")
	}
	if strings.TrimSpace(p.Body) == "" {
		return errors.NotValidf("policy %q without content", p.Title)
	}
	return nil
}

// Distribution is how remaining funds are shared when a group closes.
type Distribution string

// Distribution methods.
const (
	DistributeEqual        Distribution = "equal"
	DistributeProportional Distribution = "proportional"
)

// ClosureRequest asks the backend to start winding up a group.
type ClosureRequest struct {
	ChamaID      string       `json:"chamaId,omitempty"`
	Reason       string       `json:"reason"`
	Distribution Distribution `json:"distributionMethod"`
}

// Validate checks a closure request before submission.
func (c ClosureRequest) Validate() error {
	if len(strings.TrimSpace(c.Reason)) < 10 {
		return errors.NotValidf("closure reason shorter than 10 characters")
	}
	switch c.Distribution {
	case DistributeEqual, DistributeProportional:
		return nil
	}
	return errors.NotValidf("distribution method %q", c.Distribution)
}
