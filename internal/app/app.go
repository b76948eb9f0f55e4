package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/chain/internal/codec"
	"onchainchess/chain/internal/state"
)

const (
	AppVersion uint64 = 1
)

type ChessApp struct {
	*abci.BaseApplication

	home string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string) (*ChessApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &ChessApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *ChessApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "onchainchess (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *ChessApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// Only structural validation at mempool time; auth and preconditions are
	// enforced at delivery against committed state.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *ChessApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// No special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *ChessApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	now := req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, now)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *ChessApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *ChessApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>
	// - /game/<id>
	// - /vault/<gameId>
	// - /games
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		bal := a.st.Balance(addr)
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": bal})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/game/"):
		raw := strings.TrimPrefix(path, "/game/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
		}
		g, ok := a.st.Games[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(g)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/vault/"):
		raw := strings.TrimPrefix(path, "/vault/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
		}
		if _, ok := a.st.Games[id]; !ok {
			return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
		}
		vault := state.VaultAddress(id)
		b, _ := json.Marshal(map[string]any{"gameId": id, "addr": vault, "balance": a.st.Balance(vault)})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

// deliverTx executes one tx against a staged copy of state and swaps it in
// only on success. A failing tx therefore has zero observable side effects:
// no fund movement, no state mutation, no burned nonce.
func (a *ChessApp) deliverTx(txBytes []byte, height int64, now int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	staged, err := a.st.Clone()
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}
	staged.Height = height

	res := routeTx(staged, env, now)
	if res.Code == 0 {
		a.st = staged
	}
	return res
}

func routeTx(st *state.State, env codec.TxEnvelope, now int64) *abci.ExecTxResult {
	switch env.Type {
	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad auth/register_account value"}
		}
		if err := requireRegisterAccountAuth(st, env, msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if existing := st.AccountKeys[msg.Account]; len(existing) != 0 && !bytes.Equal(existing, msg.PubKey) {
			return &abci.ExecTxResult{Code: 1, Log: "account pubKey mismatch"}
		}
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		})

	case "bank/mint":
		// Localnet faucet; unauthenticated by design.
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/mint value"}
		}
		if msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing to/amount"}
		}
		if state.IsVaultAddress(msg.To) {
			return &abci.ExecTxResult{Code: 1, Log: "cannot mint into an escrow account"}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/send value"}
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing from/to/amount"}
		}
		if state.IsVaultAddress(msg.To) {
			return &abci.ExecTxResult{Code: 1, Log: "cannot send into an escrow account"}
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Debit(msg.From, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "chess/create_game":
		var msg codec.ChessCreateGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad chess/create_game value"}
		}
		if err := requireAccountAuth(st, env, msg.Creator); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		res, err := chessCreateGame(st, msg, now)
		if err != nil {
			return errResult(err)
		}
		return res

	case "chess/join_game":
		var msg codec.ChessJoinGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad chess/join_game value"}
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		res, err := chessJoinGame(st, msg)
		if err != nil {
			return errResult(err)
		}
		return res

	case "chess/deposit_stake":
		var msg codec.ChessDepositStakeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad chess/deposit_stake value"}
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		res, err := chessDepositStake(st, msg)
		if err != nil {
			return errResult(err)
		}
		return res

	case "chess/settle_game":
		var msg codec.ChessSettleGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad chess/settle_game value"}
		}
		// Authorization policy: the declared winner signs the settlement
		// claim. An arbiter or dual-signature policy would replace this
		// check.
		if err := requireAccountAuth(st, env, msg.Winner); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		res, err := chessSettleGame(st, msg)
		if err != nil {
			return errResult(err)
		}
		return res

	case "chess/cancel_game":
		var msg codec.ChessCancelGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad chess/cancel_game value"}
		}
		if err := requireAccountAuth(st, env, msg.Player); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		res, err := chessCancelGame(st, msg, now)
		if err != nil {
			return errResult(err)
		}
		return res

	default:
		return &abci.ExecTxResult{Code: 1, Log: "unknown tx type: " + env.Type}
	}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
