package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketUsers   = []byte("users")
	bucketWallets = []byte("wallets")
	bucketTokens  = []byte("tokens")
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateAddress is returned when a wallet address is already
	// registered for the user.
	ErrDuplicateAddress = errors.New("store: address already added")
	// ErrDuplicateLabel is returned when a wallet label is already used by
	// the user (labels are compared case-insensitively).
	ErrDuplicateLabel = errors.New("store: label already used")
	// ErrDuplicateMint is returned when a token mint is already registered
	// for the user.
	ErrDuplicateMint = errors.New("store: token already added")
)

// UserState is the per-user global notification switch.
type UserState struct {
	TelegramID int64 `json:"telegram_id"`
	Enabled    bool  `json:"enabled"`
}

// WalletSubscription is one watched address belonging to one user.
type WalletSubscription struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// TokenSubscription gates notifications by token symbol for one user.
type TokenSubscription struct {
	Mint    string `json:"mint"`
	Symbol  string `json:"symbol"`
	Enabled bool   `json:"enabled"`
}

// defaultTokens are seeded for every new user, mirroring the bot's
// out-of-the-box tracking set. WSOL is stored under the SOL display symbol.
var defaultTokens = []TokenSubscription{
	{Mint: "So11111111111111111111111111111111111111112", Symbol: "SOL", Enabled: true},
	{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Enabled: true},
	{Mint: "WETZjtprkDMCcUxPi9PfWnowMRZkiGGHDb9rABuRZ2U", Symbol: "WET", Enabled: true},
}

// Bolt is the durable subscription store: users, their wallets and their
// token filters, each with an enabled flag. All methods are safe for
// concurrent use (bbolt serializes writers internally).
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database at path and ensures the buckets
// exist.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketUsers, bucketWallets, bucketTokens} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying database file.
func (s *Bolt) Close() error { return s.db.Close() }

func userKey(telegramID int64) []byte {
	return []byte(strconv.FormatInt(telegramID, 10))
}

// --- users ---

// EnsureUser creates the user (enabled, with the default token set) if it
// does not exist yet. It reports whether a new record was created.
func (s *Bolt) EnsureUser(telegramID int64) (UserState, bool, error) {
	var u UserState
	var created bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := userKey(telegramID)
		users := tx.Bucket(bucketUsers)
		if raw := users.Get(key); raw != nil {
			return json.Unmarshal(raw, &u)
		}
		created = true
		u = UserState{TelegramID: telegramID, Enabled: true}
		raw, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if err := users.Put(key, raw); err != nil {
			return err
		}
		tb, err := tx.Bucket(bucketTokens).CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}
		for _, t := range defaultTokens {
			raw, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if err := tb.Put([]byte(t.Mint), raw); err != nil {
				return err
			}
		}
		return nil
	})
	return u, created, err
}

// GetUser loads the user's state; ErrNotFound if the user never started.
func (s *Bolt) GetUser(telegramID int64) (UserState, error) {
	var u UserState
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketUsers).Get(userKey(telegramID))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &u)
	})
	return u, err
}

// SetUserEnabled flips the user's global notification switch.
func (s *Bolt) SetUserEnabled(telegramID int64, enabled bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		key := userKey(telegramID)
		users := tx.Bucket(bucketUsers)
		raw := users.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		var u UserState
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		u.Enabled = enabled
		out, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return users.Put(key, out)
	})
}

// --- wallets ---

// AddWallet registers a wallet for the user. The address must be new for
// the user and the label unique among the user's wallets (case-insensitive).
func (s *Bolt) AddWallet(telegramID int64, address, label string) error {
	address = strings.TrimSpace(address)
	label = strings.TrimSpace(label)
	return s.db.Update(func(tx *bolt.Tx) error {
		wb, err := tx.Bucket(bucketWallets).CreateBucketIfNotExists(userKey(telegramID))
		if err != nil {
			return err
		}
		key := []byte(strings.ToLower(address))
		if wb.Get(key) != nil {
			return ErrDuplicateAddress
		}
		var dup bool
		_ = wb.ForEach(func(_, raw []byte) error {
			var w WalletSubscription
			if json.Unmarshal(raw, &w) == nil && strings.EqualFold(w.Label, label) {
				dup = true
			}
			return nil
		})
		if dup {
			return ErrDuplicateLabel
		}
		raw, err := json.Marshal(WalletSubscription{Address: address, Label: label, Enabled: true})
		if err != nil {
			return err
		}
		return wb.Put(key, raw)
	})
}

// ListWallets returns the user's wallets in key order.
func (s *Bolt) ListWallets(telegramID int64) ([]WalletSubscription, error) {
	var out []WalletSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWallets).Bucket(userKey(telegramID))
		if wb == nil {
			return nil
		}
		return wb.ForEach(func(_, raw []byte) error {
			var w WalletSubscription
			if err := json.Unmarshal(raw, &w); err != nil {
				return err
			}
			out = append(out, w)
			return nil
		})
	})
	return out, err
}

// FindWallet looks up the user's subscription for address
// (case-insensitive). ErrNotFound when the user does not track it.
func (s *Bolt) FindWallet(telegramID int64, address string) (WalletSubscription, error) {
	var w WalletSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWallets).Bucket(userKey(telegramID))
		if wb == nil {
			return ErrNotFound
		}
		raw := wb.Get([]byte(strings.ToLower(strings.TrimSpace(address))))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &w)
	})
	return w, err
}

// ToggleWallet flips the enabled flag of one wallet and returns the new
// value.
func (s *Bolt) ToggleWallet(telegramID int64, address string) (bool, error) {
	var enabled bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWallets).Bucket(userKey(telegramID))
		if wb == nil {
			return ErrNotFound
		}
		key := []byte(strings.ToLower(strings.TrimSpace(address)))
		raw := wb.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		var w WalletSubscription
		if err := json.Unmarshal(raw, &w); err != nil {
			return err
		}
		w.Enabled = !w.Enabled
		enabled = w.Enabled
		out, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return wb.Put(key, out)
	})
	return enabled, err
}

// SetAllWallets sets the enabled flag on every wallet of the user.
func (s *Bolt) SetAllWallets(telegramID int64, enabled bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		wb := tx.Bucket(bucketWallets).Bucket(userKey(telegramID))
		if wb == nil {
			return nil
		}
		type kv struct {
			key []byte
			w   WalletSubscription
		}
		var all []kv
		err := wb.ForEach(func(k, raw []byte) error {
			var w WalletSubscription
			if err := json.Unmarshal(raw, &w); err != nil {
				return err
			}
			w.Enabled = enabled
			all = append(all, kv{key: append([]byte(nil), k...), w: w})
			return nil
		})
		if err != nil {
			return err
		}
		for _, e := range all {
			raw, err := json.Marshal(e.w)
			if err != nil {
				return err
			}
			if err := wb.Put(e.key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- tokens ---

// AddToken registers a token filter for the user, keyed by mint.
func (s *Bolt) AddToken(telegramID int64, mint, symbol string) error {
	mint = strings.TrimSpace(mint)
	symbol = strings.TrimSpace(symbol)
	return s.db.Update(func(tx *bolt.Tx) error {
		tb, err := tx.Bucket(bucketTokens).CreateBucketIfNotExists(userKey(telegramID))
		if err != nil {
			return err
		}
		if tb.Get([]byte(mint)) != nil {
			return ErrDuplicateMint
		}
		raw, err := json.Marshal(TokenSubscription{Mint: mint, Symbol: symbol, Enabled: true})
		if err != nil {
			return err
		}
		return tb.Put([]byte(mint), raw)
	})
}

// ListTokens returns the user's token filters in key order.
func (s *Bolt) ListTokens(telegramID int64) ([]TokenSubscription, error) {
	var out []TokenSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTokens).Bucket(userKey(telegramID))
		if tb == nil {
			return nil
		}
		return tb.ForEach(func(_, raw []byte) error {
			var t TokenSubscription
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	return out, err
}

// FindTokenBySymbol returns the user's token subscription whose symbol
// matches case-insensitively. ErrNotFound when the user has no filter for
// the symbol.
func (s *Bolt) FindTokenBySymbol(telegramID int64, symbol string) (TokenSubscription, error) {
	var found *TokenSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTokens).Bucket(userKey(telegramID))
		if tb == nil {
			return nil
		}
		return tb.ForEach(func(_, raw []byte) error {
			var t TokenSubscription
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			if found == nil && strings.EqualFold(t.Symbol, symbol) {
				cp := t
				found = &cp
			}
			return nil
		})
	})
	if err != nil {
		return TokenSubscription{}, err
	}
	if found == nil {
		return TokenSubscription{}, ErrNotFound
	}
	return *found, nil
}

// ToggleToken flips the enabled flag of one token filter and returns the
// new value.
func (s *Bolt) ToggleToken(telegramID int64, mint string) (bool, error) {
	var enabled bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTokens).Bucket(userKey(telegramID))
		if tb == nil {
			return ErrNotFound
		}
		key := []byte(strings.TrimSpace(mint))
		raw := tb.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		var t TokenSubscription
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		t.Enabled = !t.Enabled
		enabled = t.Enabled
		out, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tb.Put(key, out)
	})
	return enabled, err
}

// SetAllTokens sets the enabled flag on every token filter of the user.
func (s *Bolt) SetAllTokens(telegramID int64, enabled bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTokens).Bucket(userKey(telegramID))
		if tb == nil {
			return nil
		}
		type kv struct {
			key []byte
			t   TokenSubscription
		}
		var all []kv
		err := tb.ForEach(func(k, raw []byte) error {
			var t TokenSubscription
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			t.Enabled = enabled
			all = append(all, kv{key: append([]byte(nil), k...), t: t})
			return nil
		})
		if err != nil {
			return err
		}
		for _, e := range all {
			raw, err := json.Marshal(e.t)
			if err != nil {
				return err
			}
			if err := tb.Put(e.key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- derived sets ---

// EnabledWalletAddresses returns the union of enabled wallet addresses over
// all enabled users: the reconciler's desired set. Addresses are returned
// in their original casing.
func (s *Bolt) EnabledWalletAddresses() (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		wallets := tx.Bucket(bucketWallets)
		return users.ForEach(func(k, raw []byte) error {
			var u UserState
			if err := json.Unmarshal(raw, &u); err != nil {
				return err
			}
			if !u.Enabled {
				return nil
			}
			wb := wallets.Bucket(k)
			if wb == nil {
				return nil
			}
			return wb.ForEach(func(_, wraw []byte) error {
				var w WalletSubscription
				if err := json.Unmarshal(wraw, &w); err != nil {
					return err
				}
				if w.Enabled {
					out[w.Address] = struct{}{}
				}
				return nil
			})
		})
	})
	return out, err
}

// Counts reports the number of users and total wallets, for health output.
func (s *Bolt) Counts() (users int, wallets int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket(bucketUsers)
		if e := ub.ForEach(func(_, _ []byte) error { users++; return nil }); e != nil {
			return e
		}
		wb := tx.Bucket(bucketWallets)
		return wb.ForEachBucket(func(k []byte) error {
			sub := wb.Bucket(k)
			return sub.ForEach(func(_, _ []byte) error { wallets++; return nil })
		})
	})
	return users, wallets, err
}
