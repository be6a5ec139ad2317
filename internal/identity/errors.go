package identity

import "errors"

// ErrInvalidCredential is the only resolution failure callers ever see.
// Not-found, revoked, and expired credentials are indistinguishable at the
// API boundary to prevent credential enumeration.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// ErrInvalidInput indicates malformed input to an administrative operation.
var ErrInvalidInput = errors.New("identity: invalid input")

// Denial reasons recorded in the audit trail. Never surfaced to callers.
const (
	ReasonMalformed = "credential_malformed"
	ReasonNotFound  = "credential_not_found"
	ReasonRevoked   = "credential_revoked"
	ReasonExpired   = "credential_expired"
)

// denialError carries the audit reason while comparing equal to
// ErrInvalidCredential under errors.Is.
type denialError struct {
	reason string
}

func (e *denialError) Error() string { return ErrInvalidCredential.Error() }

func (e *denialError) Is(target error) bool { return target == ErrInvalidCredential }

func deny(reason string) error { return &denialError{reason: reason} }

// DenialReason extracts the audit reason from a resolution error. Returns
// empty string for errors that are not credential denials.
func DenialReason(err error) string {
	var d *denialError
	if errors.As(err, &d) {
		return d.reason
	}
	return ""
}
