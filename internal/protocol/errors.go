package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Gateway routing/state.
	ErrBusy = "E_BUSY"

	// Ledger rule layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrNoFunds      = "E_NO_FUNDS"
	ErrNotEligible  = "E_NOT_ELIGIBLE"
	ErrNotLastUser  = "E_NOT_LAST_USER"
	ErrCooldown     = "E_COOLDOWN"
	ErrGameFinished = "E_GAME_FINISHED"
	ErrWrongNetwork = "E_WRONG_NETWORK"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNoFunds:         {},
	ErrNotEligible:     {},
	ErrNotLastUser:     {},
	ErrCooldown:        {},
	ErrGameFinished:    {},
	ErrWrongNetwork:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
