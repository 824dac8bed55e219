// Package member is the member directory consulted by the fingerprint
// bridge before a sensor slot is enrolled.
//
// The bridge owns no member data. It only asks whether a fingerprint slot
// is already assigned (IsFingerprintBound) and, for status screens, who
// holds a slot (GetByFingerprint). The members table is created by the
// embedded migrations in package migrations.
package member
