package app

import (
	"fmt"
	"math"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/chain/internal/codec"
	"onchainchess/chain/internal/state"
)

// Platform fee: 5% of the pooled stake, floor division. total/20 is exactly
// floor(total*5/100) for integers and cannot overflow.
const feeDivisor = 20

// A created game may be cancelled by its creator once this much time passed
// without a second player joining.
const cancelAfterSecs = 86_400 // 24h

func chessCreateGame(st *state.State, msg codec.ChessCreateGameTx, now int64) (*abci.ExecTxResult, error) {
	if st == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if msg.Creator == "" {
		return nil, fmt.Errorf("missing creator")
	}
	if msg.StakeAmount == 0 {
		return nil, ErrInvalidStake.WithInfo("stake amount must be > 0")
	}
	// Cap so total = 2*stake is always representable at settlement.
	if msg.StakeAmount > math.MaxUint64/2 {
		return nil, ErrInvalidStake.WithInfo("stake amount too large: %d", msg.StakeAmount)
	}

	id := st.NextGameID
	st.NextGameID++
	st.Games[id] = &state.Game{
		ID:          id,
		PlayerOne:   msg.Creator,
		StakeAmount: msg.StakeAmount,
		Status:      state.GameCreated,
		CreatedAt:   now,
	}

	return okEvent("GameCreated", map[string]string{
		"gameId":      fmt.Sprintf("%d", id),
		"playerOne":   msg.Creator,
		"stakeAmount": fmt.Sprintf("%d", msg.StakeAmount),
	}), nil
}

func chessJoinGame(st *state.State, msg codec.ChessJoinGameTx) (*abci.ExecTxResult, error) {
	if st == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if msg.Player == "" {
		return nil, fmt.Errorf("missing player")
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, ErrGameNotFound.WithInfo("game %d", msg.GameID)
	}
	if g.Status != state.GameCreated {
		return nil, ErrGameFull.WithInfo("game %d already has two players", g.ID)
	}
	if msg.Player == g.PlayerOne {
		return nil, ErrSelfJoin.WithInfo("creator cannot join their own game")
	}

	g.PlayerTwo = msg.Player
	g.Status = state.GameStarted

	return okEvent("GameStarted", map[string]string{
		"gameId":    fmt.Sprintf("%d", g.ID),
		"playerOne": g.PlayerOne,
		"playerTwo": g.PlayerTwo,
	}), nil
}

func chessDepositStake(st *state.State, msg codec.ChessDepositStakeTx) (*abci.ExecTxResult, error) {
	if st == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if msg.Player == "" {
		return nil, fmt.Errorf("missing player")
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, ErrGameNotFound.WithInfo("game %d", msg.GameID)
	}
	switch g.Status {
	case state.GameStarted:
	case state.GameCreated:
		return nil, ErrGameNotStarted.WithInfo("game %d is waiting for a second player", g.ID)
	case state.GameCompleted:
		return nil, ErrGameAlreadyCompleted.WithInfo("game %d", g.ID)
	default:
		return nil, fmt.Errorf("unknown game status %q", g.Status)
	}
	if !g.IsPlayer(msg.Player) {
		return nil, ErrNotAPlayer.WithInfo("%q is not a participant of game %d", msg.Player, g.ID)
	}
	if g.HasDeposited(msg.Player) {
		return nil, ErrAlreadyDeposited.WithInfo("%q already deposited for game %d", msg.Player, g.ID)
	}
	if st.Balance(msg.Player) < g.StakeAmount {
		return nil, ErrInsufficientFunds.WithInfo("have=%d need=%d", st.Balance(msg.Player), g.StakeAmount)
	}

	vault := state.VaultAddress(g.ID)
	if err := st.Debit(msg.Player, g.StakeAmount); err != nil {
		return nil, ErrInsufficientFunds.WithInfo("%v", err)
	}
	if err := st.Credit(vault, g.StakeAmount); err != nil {
		return nil, err
	}
	if msg.Player == g.PlayerOne {
		g.DepositedOne = true
	} else {
		g.DepositedTwo = true
	}

	return okEvent("StakeDeposited", map[string]string{
		"gameId":       fmt.Sprintf("%d", g.ID),
		"player":       msg.Player,
		"amount":       fmt.Sprintf("%d", g.StakeAmount),
		"vaultBalance": fmt.Sprintf("%d", st.Balance(vault)),
	}), nil
}

func chessSettleGame(st *state.State, msg codec.ChessSettleGameTx) (*abci.ExecTxResult, error) {
	if st == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if msg.Winner == "" {
		return nil, fmt.Errorf("missing winner")
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, ErrGameNotFound.WithInfo("game %d", msg.GameID)
	}

	// All preconditions are checked before any fund movement, in a fixed
	// order: status, winner, stakes.
	switch g.Status {
	case state.GameStarted:
	case state.GameCreated:
		return nil, ErrGameNotStarted.WithInfo("game %d never started", g.ID)
	case state.GameCompleted:
		return nil, ErrGameAlreadyCompleted.WithInfo("game %d", g.ID)
	default:
		return nil, fmt.Errorf("unknown game status %q", g.Status)
	}
	if !g.IsPlayer(msg.Winner) {
		return nil, ErrInvalidWinner.WithInfo("%q is not a participant of game %d", msg.Winner, g.ID)
	}
	if !g.BothDeposited() {
		return nil, ErrStakesNotComplete.WithInfo("game %d vault is not fully funded", g.ID)
	}

	vault := state.VaultAddress(g.ID)
	total := g.StakeAmount * 2 // stake is capped at creation; cannot overflow
	if bal := st.Balance(vault); bal != total {
		return nil, fmt.Errorf("vault invariant violated: balance=%d want=%d", bal, total)
	}
	fee := total / feeDivisor
	payout := total - fee

	if err := st.Debit(vault, payout); err != nil {
		return nil, err
	}
	if err := st.Credit(msg.Winner, payout); err != nil {
		return nil, err
	}
	if err := st.Debit(vault, fee); err != nil {
		return nil, err
	}
	if err := st.Credit(state.TreasuryAccount, fee); err != nil {
		return nil, err
	}
	if bal := st.Balance(vault); bal != 0 {
		return nil, fmt.Errorf("vault not drained after settlement: balance=%d", bal)
	}

	g.Status = state.GameCompleted
	g.Winner = msg.Winner

	return okEvent("GameSettled", map[string]string{
		"gameId": fmt.Sprintf("%d", g.ID),
		"winner": msg.Winner,
		"total":  fmt.Sprintf("%d", total),
		"fee":    fmt.Sprintf("%d", fee),
		"payout": fmt.Sprintf("%d", payout),
	}), nil
}

func chessCancelGame(st *state.State, msg codec.ChessCancelGameTx, now int64) (*abci.ExecTxResult, error) {
	if st == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if msg.Player == "" {
		return nil, fmt.Errorf("missing player")
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, ErrGameNotFound.WithInfo("game %d", msg.GameID)
	}
	if msg.Player != g.PlayerOne {
		return nil, ErrNotAPlayer.WithInfo("only the creator can cancel game %d", g.ID)
	}
	switch g.Status {
	case state.GameCreated:
	case state.GameStarted:
		return nil, ErrGameFull.WithInfo("game %d already started", g.ID)
	case state.GameCompleted:
		return nil, ErrGameAlreadyCompleted.WithInfo("game %d", g.ID)
	default:
		return nil, fmt.Errorf("unknown game status %q", g.Status)
	}
	if now-g.CreatedAt < cancelAfterSecs {
		return nil, ErrGameNotExpired.WithInfo("game %d must wait %ds before cancellation", g.ID, cancelAfterSecs)
	}

	// Deposits are gated on Started, so a created game's vault is always
	// empty; nothing to refund.
	g.Status = state.GameCompleted

	return okEvent("GameCancelled", map[string]string{
		"gameId":    fmt.Sprintf("%d", g.ID),
		"playerOne": g.PlayerOne,
	}), nil
}
