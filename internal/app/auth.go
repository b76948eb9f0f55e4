package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"

	"onchainchess/chain/internal/codec"
	"onchainchess/chain/internal/state"
)

const txAuthDomainV0 = "chess/tx/v0"

func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// consumeNonce enforces strictly increasing numeric nonces per signer. It
// mutates staged state, so a failed tx never burns a nonce.
func consumeNonce(st *state.State, env codec.TxEnvelope) error {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("invalid tx.nonce %q: must be a positive integer", env.Nonce)
	}
	if last := st.NonceMax[env.Signer]; n <= last {
		return fmt.Errorf("replayed tx.nonce: got %d, last accepted %d", n, last)
	}
	st.NonceMax[env.Signer] = n
	return nil
}

// requireRegisterAccountAuth authenticates auth/register_account with the key
// being registered (self-signed bootstrap).
func requireRegisterAccountAuth(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return fmt.Errorf("missing account")
	}
	if state.IsVaultAddress(msg.Account) {
		return fmt.Errorf("account %q is in the reserved escrow namespace", msg.Account)
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	pub := ed25519.PublicKey(msg.PubKey)
	msgBytes := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(pub, msgBytes, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return consumeNonce(st, env)
}

// requireAccountAuth authenticates a tx claimed to act as `account` against
// the registered account key.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return fmt.Errorf("missing account")
	}
	if state.IsVaultAddress(account) {
		return fmt.Errorf("escrow accounts cannot sign txs")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("account %q missing pubKey (auth/register_account required)", account)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return consumeNonce(st, env)
}
