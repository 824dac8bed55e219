package member

import "errors"

var (
	// ErrMemberNotFound is returned when no member matches the lookup.
	ErrMemberNotFound = errors.New("member not found")

	// ErrFingerprintInUse is returned when a fingerprint slot is already
	// assigned to another member.
	ErrFingerprintInUse = errors.New("fingerprint already assigned to another member")

	// ErrInvalidMember is returned when a member fails validation.
	ErrInvalidMember = errors.New("invalid member")
)
