package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Tx auth:
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (the acting player's account for chess txs).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth ----

// Account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Chess ----

type ChessCreateGameTx struct {
	Creator     string `json:"creator"`
	StakeAmount uint64 `json:"stakeAmount"`
}

type ChessJoinGameTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
}

type ChessDepositStakeTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
}

type ChessSettleGameTx struct {
	Winner string `json:"winner"`
	GameID uint64 `json:"gameId"`
}

type ChessCancelGameTx struct {
	Player string `json:"player"`
	GameID uint64 `json:"gameId"`
}
