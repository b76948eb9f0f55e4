package app

import (
	"math"
	"testing"

	"onchainchess/chain/internal/state"
)

func TestCreateGame_RecordsGame(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")

	res := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 77,
	}, "alice"), height, 42))

	ev := findEvent(res.Events, "GameCreated")
	if ev == nil {
		t.Fatalf("expected GameCreated event")
	}
	id := parseU64(t, attr(ev, "gameId"))

	g := a.st.Games[id]
	if g == nil {
		t.Fatalf("missing game record")
	}
	if g.PlayerOne != "alice" || g.PlayerTwo != "" {
		t.Fatalf("unexpected players: %+v", g)
	}
	if g.StakeAmount != 77 {
		t.Fatalf("stake mismatch: %d", g.StakeAmount)
	}
	if g.Status != state.GameCreated {
		t.Fatalf("expected created status, got %q", g.Status)
	}
	if g.CreatedAt != 42 {
		t.Fatalf("expected block time recorded, got %d", g.CreatedAt)
	}
	// Creating a game locks no funds yet.
	if a.st.Balance("alice") != 100 {
		t.Fatalf("create must not move funds, balance=%d", a.st.Balance("alice"))
	}
}

func TestCreateGame_ZeroStakeFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	registerTestAccount(t, a, height, "alice")

	res := a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 0,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrInvalidStake)
	if len(a.st.Games) != 0 {
		t.Fatalf("failed create must not allocate a game")
	}
	if a.st.NextGameID != 1 {
		t.Fatalf("failed create must not advance nextGameId, got %d", a.st.NextGameID)
	}
}

func TestCreateGame_OverflowingStakeFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	registerTestAccount(t, a, height, "alice")

	res := a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": uint64(math.MaxUint64/2 + 1),
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrInvalidStake)
}

func TestJoinGame_StartsGameAndPreservesStake(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 12345)

	g := a.st.Games[gameID]
	if g.Status != state.GameStarted {
		t.Fatalf("expected started, got %q", g.Status)
	}
	if g.PlayerTwo != "bob" {
		t.Fatalf("playerTwo not set: %+v", g)
	}
	if g.StakeAmount != 12345 {
		t.Fatalf("stake changed on join: %d", g.StakeAmount)
	}
}

func TestJoinGame_SelfJoinFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")
	createRes := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 10,
	}, "alice"), height, 0))
	gameID := parseU64(t, attr(findEvent(createRes.Events, "GameCreated"), "gameId"))

	res := a.deliverTx(txBytesSigned(t, "chess/join_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrSelfJoin)

	if a.st.Games[gameID].Status != state.GameCreated {
		t.Fatalf("failed join must not start game")
	}
}

func TestJoinGame_AlreadyStartedFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 10)

	mintTestTokens(t, a, height, "carol", 100)
	registerTestAccount(t, a, height, "carol")

	res := a.deliverTx(txBytesSigned(t, "chess/join_game", map[string]any{
		"player": "carol",
		"gameId": gameID,
	}, "carol"), height, 0)
	mustFailWith(t, res, ErrGameFull)

	if a.st.Games[gameID].PlayerTwo != "bob" {
		t.Fatalf("playerTwo overwritten by failed join")
	}
}

func TestJoinGame_UnknownGameFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	registerTestAccount(t, a, height, "bob")

	res := a.deliverTx(txBytesSigned(t, "chess/join_game", map[string]any{
		"player": "bob",
		"gameId": 42,
	}, "bob"), height, 0)
	mustFailWith(t, res, ErrGameNotFound)
}

func TestDepositStake_FundsVault(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 600)
	vault := state.VaultAddress(gameID)

	res := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0))
	ev := findEvent(res.Events, "StakeDeposited")
	if parseU64(t, attr(ev, "vaultBalance")) != 600 {
		t.Fatalf("unexpected vault balance attr: %q", attr(ev, "vaultBalance"))
	}

	if a.st.Balance(vault) != 600 {
		t.Fatalf("vault balance=%d want 600", a.st.Balance(vault))
	}
	if a.st.Balance("alice") != 0 {
		t.Fatalf("stake not debited from alice")
	}
	g := a.st.Games[gameID]
	if !g.DepositedOne || g.DepositedTwo {
		t.Fatalf("deposit flags wrong: %+v", g)
	}

	mustOk(t, a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "bob",
		"gameId": gameID,
	}, "bob"), height, 0))

	// Vault holds stake × players deposited.
	if a.st.Balance(vault) != 1200 {
		t.Fatalf("vault balance=%d want 1200", a.st.Balance(vault))
	}
	if !a.st.Games[gameID].BothDeposited() {
		t.Fatalf("expected both deposits recorded")
	}
}

func TestDepositStake_BeforeStartFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")
	createRes := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 10,
	}, "alice"), height, 0))
	gameID := parseU64(t, attr(findEvent(createRes.Events, "GameCreated"), "gameId"))

	res := a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrGameNotStarted)

	if a.st.Balance(state.VaultAddress(gameID)) != 0 {
		t.Fatalf("vault must stay empty before start")
	}
}

func TestDepositStake_DoubleDepositFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 50)
	vault := state.VaultAddress(gameID)

	// Give alice enough for two stakes so only the flag can stop her.
	mintTestTokens(t, a, height, "alice", 50)

	mustOk(t, a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0))
	before := a.st.Balance(vault)

	res := a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrAlreadyDeposited)

	if a.st.Balance(vault) != before {
		t.Fatalf("vault changed on failed deposit: before=%d after=%d", before, a.st.Balance(vault))
	}
}

func TestDepositStake_OutsiderFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 50)

	mintTestTokens(t, a, height, "carol", 100)
	registerTestAccount(t, a, height, "carol")

	res := a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "carol",
		"gameId": gameID,
	}, "carol"), height, 0)
	mustFailWith(t, res, ErrNotAPlayer)
}

func TestDepositStake_InsufficientFundsFails(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 50)

	// Burn alice's balance below the stake.
	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": 20,
	}, "alice"), height, 0))

	res := a.deliverTx(txBytesSigned(t, "chess/deposit_stake", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 0)
	mustFailWith(t, res, ErrInsufficientFunds)

	if a.st.Balance("alice") != 30 {
		t.Fatalf("failed deposit must not debit, balance=%d", a.st.Balance("alice"))
	}
	if a.st.Games[gameID].DepositedOne {
		t.Fatalf("failed deposit must not set flag")
	}
}

func TestCancelGame_RequiresExpiry(t *testing.T) {
	const height = int64(1)
	const createdAt = int64(1_000_000)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")
	createRes := mustOk(t, a.deliverTx(txBytesSigned(t, "chess/create_game", map[string]any{
		"creator":     "alice",
		"stakeAmount": 10,
	}, "alice"), height, createdAt))
	gameID := parseU64(t, attr(findEvent(createRes.Events, "GameCreated"), "gameId"))

	res := a.deliverTx(txBytesSigned(t, "chess/cancel_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, createdAt+86_399)
	mustFailWith(t, res, ErrGameNotExpired)

	res = mustOk(t, a.deliverTx(txBytesSigned(t, "chess/cancel_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, createdAt+86_400))
	if findEvent(res.Events, "GameCancelled") == nil {
		t.Fatalf("expected GameCancelled event")
	}

	g := a.st.Games[gameID]
	if g.Status != state.GameCompleted {
		t.Fatalf("expected completed after cancel, got %q", g.Status)
	}
	if g.Winner != "" {
		t.Fatalf("cancelled game must have no winner, got %q", g.Winner)
	}

	// Terminal: no join, no second cancel.
	registerTestAccount(t, a, height, "bob")
	joinRes := a.deliverTx(txBytesSigned(t, "chess/join_game", map[string]any{
		"player": "bob",
		"gameId": gameID,
	}, "bob"), height, 0)
	mustFailWith(t, joinRes, ErrGameFull)

	cancelRes := a.deliverTx(txBytesSigned(t, "chess/cancel_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, createdAt+200_000)
	mustFailWith(t, cancelRes, ErrGameAlreadyCompleted)
}

func TestCancelGame_OnlyCreatorAndOnlyBeforeStart(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)
	gameID := setupStartedGame(t, a, height, 10)

	res := a.deliverTx(txBytesSigned(t, "chess/cancel_game", map[string]any{
		"player": "bob",
		"gameId": gameID,
	}, "bob"), height, 1_000_000)
	mustFailWith(t, res, ErrNotAPlayer)

	res = a.deliverTx(txBytesSigned(t, "chess/cancel_game", map[string]any{
		"player": "alice",
		"gameId": gameID,
	}, "alice"), height, 1_000_000)
	mustFailWith(t, res, ErrGameFull)
}
