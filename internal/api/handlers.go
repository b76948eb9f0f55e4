package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"onchainchess/chain/internal/codec"
)

// Handler translates the UI-facing HTTP surface into chain queries and tx
// broadcasts. It holds no state of its own: the ledger is the sole source of
// truth.
type Handler struct {
	chain ChainClient
}

func NewHandler(chain ChainClient) *Handler {
	return &Handler{chain: chain}
}

const maxTxBodyBytes = 1 << 16

type txResponse struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Code   uint32 `json:"code"`
	Log    string `json:"log,omitempty"`
}

func (h *Handler) BroadcastTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	// Reject malformed envelopes before they hit the chain.
	if _, err := codec.DecodeTxEnvelope(body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.chain.BroadcastTxCommit(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("broadcast tx: %w", err))
		return
	}

	resp := txResponse{
		Hash:   res.Hash.String(),
		Height: res.Height,
	}
	status := http.StatusOK
	switch {
	case res.CheckTx.Code != 0:
		resp.Code = res.CheckTx.Code
		resp.Log = res.CheckTx.Log
		status = http.StatusUnprocessableEntity
	case res.TxResult.Code != 0:
		resp.Code = res.TxResult.Code
		resp.Log = res.TxResult.Log
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, "/games")
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	h.query(w, r, fmt.Sprintf("/game/%d", id))
}

func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	h.query(w, r, fmt.Sprintf("/vault/%d", id))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	if addr == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing account address"))
		return
	}
	h.query(w, r, "/account/"+addr)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request, path string) {
	res, err := h.chain.ABCIQuery(r.Context(), path, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("chain query: %w", err))
		return
	}
	if res.Response.Code != 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("%s", res.Response.Log))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Response.Value)
}

func gameIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "gameID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid game id %q", raw))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
