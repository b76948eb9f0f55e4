package app

import (
	"errors"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"
)

// Codespace for chess precondition failures. Structural/codec failures stay in
// the default codespace with code 1.
const chessCodespace = "chess"

// GameError is a typed precondition failure. Every failed operation leaves the
// game and vault unchanged, so callers may retry with corrected input.
type GameError struct {
	Name string
	Code uint32
	info string
}

func (e *GameError) Error() string {
	if e.info == "" {
		return e.Name
	}
	return e.Name + ": " + e.info
}

// WithInfo attaches call-site detail without losing the error identity.
func (e *GameError) WithInfo(format string, args ...any) *GameError {
	return &GameError{Name: e.Name, Code: e.Code, info: fmt.Sprintf(format, args...)}
}

// Is matches on identity, so wrapped/detailed copies compare equal to the
// sentinel in errors.Is.
func (e *GameError) Is(target error) bool {
	var ge *GameError
	if !errors.As(target, &ge) {
		return false
	}
	return ge.Code == e.Code
}

// Stable result codes. Codes are part of the external interface; do not
// renumber.
var (
	ErrInvalidStake         = &GameError{Name: "InvalidStake", Code: 10}
	ErrSelfJoin             = &GameError{Name: "SelfJoin", Code: 11}
	ErrGameFull             = &GameError{Name: "GameFull", Code: 12}
	ErrNotAPlayer           = &GameError{Name: "NotAPlayer", Code: 13}
	ErrAlreadyDeposited     = &GameError{Name: "AlreadyDeposited", Code: 14}
	ErrInsufficientFunds    = &GameError{Name: "InsufficientFunds", Code: 15}
	ErrGameNotStarted       = &GameError{Name: "GameNotStarted", Code: 16}
	ErrGameAlreadyCompleted = &GameError{Name: "GameAlreadyCompleted", Code: 17}
	ErrStakesNotComplete    = &GameError{Name: "StakesNotComplete", Code: 18}
	ErrInvalidWinner        = &GameError{Name: "InvalidWinner", Code: 19}
	ErrGameNotExpired       = &GameError{Name: "GameNotExpired", Code: 20}
	ErrGameNotFound         = &GameError{Name: "GameNotFound", Code: 21}
)

func errResult(err error) *abci.ExecTxResult {
	var ge *GameError
	if errors.As(err, &ge) {
		return &abci.ExecTxResult{
			Code:      ge.Code,
			Codespace: chessCodespace,
			Log:       ge.Error(),
		}
	}
	return &abci.ExecTxResult{Code: 1, Log: err.Error()}
}
