package member

import (
	"fmt"
	"strings"
	"time"
)

// Member is a person who may hold a fingerprint slot.
type Member struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name,omitempty"`
	FingerprintID *int      `json:"fingerprint_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Validate checks required fields.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" {
		return fmt.Errorf("%w: first name required", ErrInvalidMember)
	}
	if m.FingerprintID != nil && *m.FingerprintID <= 0 {
		return fmt.Errorf("%w: fingerprint id must be positive", ErrInvalidMember)
	}
	return nil
}
