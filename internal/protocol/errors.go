package protocol

const (
	// Another client holds this account; the session cannot continue.
	ErrSessionConflict = "E_SESSION_CONFLICT"

	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrNotAdjacent   = "E_NOT_ADJACENT"
	ErrBlocked       = "E_BLOCKED"
	ErrInventoryFull = "E_INVENTORY_FULL"
	ErrUnauthorized  = "E_UNAUTHORIZED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrSessionConflict: {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrRateLimit:       {},
	ErrNoResource:      {},
	ErrNotAdjacent:     {},
	ErrBlocked:         {},
	ErrInventoryFull:   {},
	ErrUnauthorized:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// IsFatalCode reports codes that end the session for good.
func IsFatalCode(code string) bool {
	return code == ErrSessionConflict
}
