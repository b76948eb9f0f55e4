package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TreasuryAccount receives the platform fee on settlement.
const TreasuryAccount = "treasury"

// vaultPrefix is reserved: escrow addresses are derived, never registered.
const vaultPrefix = "escrow/"

type State struct {
	Height int64 `json:"height"`

	NextGameID  uint64            `json:"nextGameId"`
	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection
	Games       map[uint64]*Game  `json:"games"`
}

func NewState() *State {
	return &State{
		Height:      0,
		NextGameID:  1,
		Accounts:    map[string]uint64{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
		Games:       map[uint64]*Game{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	normalize(&st)
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	normalize(&out)
	return &out, nil
}

func normalize(s *State) {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Games == nil {
		s.Games = map[uint64]*Game{}
	}
	if s.NextGameID == 0 {
		s.NextGameID = 1
	}
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type gameKV struct {
		ID   uint64 `json:"id"`
		Game *Game  `json:"game"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	games := make([]gameKV, 0, len(s.Games))
	for id, g := range s.Games {
		games = append(games, gameKV{ID: id, Game: g})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	normalized := struct {
		Height      int64          `json:"height"`
		NextGameID  uint64         `json:"nextGameId"`
		Accounts    []accountKV    `json:"accounts"`
		AccountKeys []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV      `json:"nonceMax,omitempty"`
		Games       []gameKV       `json:"games"`
	}{
		Height:      s.Height,
		NextGameID:  s.NextGameID,
		Accounts:    accounts,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
		Games:       games,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Escrow vault ----

// VaultAddress derives the escrow account for a game. One vault per game; the
// vault has no independent identity beyond the game that owns it.
func VaultAddress(gameID uint64) string {
	return fmt.Sprintf("%s%d", vaultPrefix, gameID)
}

// IsVaultAddress reports whether addr lives in the reserved escrow namespace.
// Reserved addresses can never register a key, sign a tx, or receive mints.
func IsVaultAddress(addr string) bool {
	return strings.HasPrefix(addr, vaultPrefix)
}

// ---- Chess ----

type GameStatus string

const (
	// GameCreated: waiting for a second player.
	GameCreated GameStatus = "created"
	// GameStarted: both players set; stakes may be deposited.
	GameStarted GameStatus = "started"
	// GameCompleted: terminal. Settled (winner set) or cancelled (winner empty).
	GameCompleted GameStatus = "completed"
)

type Game struct {
	ID        uint64 `json:"id"`
	PlayerOne string `json:"playerOne"`
	PlayerTwo string `json:"playerTwo,omitempty"` // empty until joined

	// StakeAmount is fixed at creation and never changes.
	StakeAmount uint64 `json:"stakeAmount"`

	Status GameStatus `json:"status"`
	Winner string     `json:"winner,omitempty"` // set only on settlement

	CreatedAt int64 `json:"createdAt"` // unix seconds (block time)

	// Per-player deposit flags guard against double deposits and gate settlement.
	DepositedOne bool `json:"depositedOne,omitempty"`
	DepositedTwo bool `json:"depositedTwo,omitempty"`
}

// IsPlayer reports whether addr participates in the game.
func (g *Game) IsPlayer(addr string) bool {
	if g == nil || addr == "" {
		return false
	}
	return addr == g.PlayerOne || (g.PlayerTwo != "" && addr == g.PlayerTwo)
}

// HasDeposited reports whether addr's stake is already in the vault.
func (g *Game) HasDeposited(addr string) bool {
	if g == nil {
		return false
	}
	switch addr {
	case g.PlayerOne:
		return g.DepositedOne
	case g.PlayerTwo:
		return g.PlayerTwo != "" && g.DepositedTwo
	default:
		return false
	}
}

// BothDeposited reports whether the vault holds both stakes.
func (g *Game) BothDeposited() bool {
	return g != nil && g.DepositedOne && g.DepositedTwo
}
