package delegated

import "errors"

var (
	// ErrNoActiveSession means the subject has never completed the
	// interactive consent flow, or every session was revoked.
	ErrNoActiveSession = errors.New("no active delegated session for subject")

	// ErrReauthRequired means the stored credential handle was rejected by
	// the identity provider and the subject must re-consent interactively.
	// All sessions for the subject are deactivated before this is returned.
	ErrReauthRequired = errors.New("delegated session expired, interactive re-consent required")
)
