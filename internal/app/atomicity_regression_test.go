package app

import (
	"bytes"
	"testing"

	"onchainchess/chain/internal/state"
)

func TestAtomicity_FailedDepositLeavesStateUntouched(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 100)

	// Drain alice below the stake so the deposit fails mid-handler.
	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": 50,
	}, "alice"), height, 0))

	before := a.st.AppHash()
	res := a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	if res.Code == 0 {
		t.Fatalf("expected deposit to fail")
	}

	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("failed deposit changed app state")
	}
}

func TestAtomicity_FailedSettleLeavesVaultFunded(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupFundedGame(t, a, height, 100)
	registerTestAccount(t, a, height, "carol")

	before := a.st.AppHash()
	res := a.deliverTx(txBytesSigned(t, "chess/settle_game", map[string]any{
		"winner": "carol",
		"gameId": gameID,
	}, "carol"), height, 0)
	mustFailWith(t, res, ErrInvalidWinner)

	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("failed settle changed app state")
	}
	if a.st.Balance(state.VaultAddress(gameID)) != 200 {
		t.Fatalf("vault drained by failed settle")
	}
}

func TestAtomicity_FailedJoinDoesNotMutateGame(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")
	createRes := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 10,
	}, "alice"), height, 0))
	gameID := parseU64(t, attr(findEvent(createRes.Events, "GameCreated"), "gameId"))

	before := a.st.AppHash()
	res := a.deliverTx(txBytesSigned(t, "chess/join_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrSelfJoin)

	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("failed join changed app state")
	}
}

func TestAtomicity_FailedTxDoesNotBurnNonce(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	registerTestAccount(t, a, height, "alice")

	nonceBefore := a.st.NonceMax["alice"]
	res := a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 0,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrInvalidStake)

	if a.st.NonceMax["alice"] != nonceBefore {
		t.Fatalf("failed tx advanced the nonce high-water mark")
	}
}
