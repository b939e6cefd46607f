package domain

import (
	"fmt"
	"strings"
	"time"
)

// Job is a single job application tracked by its owner.
type Job struct {
	ID          string    `json:"_id"`
	Position    string    `json:"Position"`
	Company     string    `json:"Company"`
	Phase       string    `json:"Phase"`
	CL          bool      `json:"CL"`
	Status      bool      `json:"Status"`
	Note        string    `json:"Note,omitempty"`
	AppliedDate string    `json:"Applied date"`
	OwnerID     string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// JobPatch carries a partial update. Nil fields are left untouched.
type JobPatch struct {
	Position    *string
	Company     *string
	Phase       *string
	CL          *bool
	Status      *bool
	Note        *string
	AppliedDate *string
}

// appliedDateLayouts are the ISO-8601 forms accepted for "Applied date".
var appliedDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// NormalizeAppliedDate validates an ISO-8601 date and returns it in RFC 3339 form.
func NormalizeAppliedDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range appliedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("%w: applied date must be a valid date", ErrInvalidInput)
}

// Validate checks the fields required on creation.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Position) == "" {
		return fmt.Errorf("%w: position is required", ErrInvalidInput)
	}
	if strings.TrimSpace(j.Company) == "" {
		return fmt.Errorf("%w: company is required", ErrInvalidInput)
	}
	date, err := NormalizeAppliedDate(j.AppliedDate)
	if err != nil {
		return err
	}
	j.AppliedDate = date
	return nil
}

// Apply merges the non-nil fields of p into j.
func (j *Job) Apply(p JobPatch) error {
	if p.AppliedDate != nil {
		date, err := NormalizeAppliedDate(*p.AppliedDate)
		if err != nil {
			return err
		}
		j.AppliedDate = date
	}
	if p.Position != nil {
		j.Position = *p.Position
	}
	if p.Company != nil {
		j.Company = *p.Company
	}
	if p.Phase != nil {
		j.Phase = *p.Phase
	}
	if p.CL != nil {
		j.CL = *p.CL
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Note != nil {
		j.Note = *p.Note
	}
	return nil
}
