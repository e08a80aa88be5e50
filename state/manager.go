package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/types"
	"nftmarket/native/auction"
	"nftmarket/storage"
)

// vaultSeed is hashed into the module vault address. The vault is a plain
// ledger address with no key behind it, so nothing outside the engine can
// move funds or items held there.
const vaultSeed = "auction/module/vault"

// Manager persists marketplace state in a key-value database. It implements
// the ledger surface the auction engine operates on, plus the genesis helpers
// used to seed accounts, balances and item ownership.
type Manager struct {
	mu sync.RWMutex
	db storage.Database

	vault     [20]byte
	vaultOnce sync.Once
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type accountRecord struct {
	Registered bool     `json:"registered"`
	Nonce      uint64   `json:"nonce"`
	BalanceMKT *big.Int `json:"balanceMkt"`
}

type escrowRecord struct {
	Amount *big.Int `json:"amount"`
}

type ownerRecord struct {
	Owner []byte `json:"owner"`
}

type auctionIndex struct {
	Items []auction.ItemID `json:"items"`
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", string(key), err)
	}
	return m.db.Put(key, raw)
}

// AuctionPut stores the auction entry keyed by item identity and appends the
// item to the creation-order index on first insert. Entries are never deleted.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	sanitized, err := auction.SanitizeAuction(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := auctionKey(sanitized.Item)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if !exists {
		var index auctionIndex
		if _, err := m.getJSON(auctionIndexKey, &index); err != nil {
			return err
		}
		index.Items = append(index.Items, sanitized.Item)
		if err := m.putJSON(auctionIndexKey, &index); err != nil {
			return err
		}
	}
	return m.putJSON(key, sanitized)
}

func (m *Manager) AuctionGet(item auction.ItemID) (*auction.Auction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var a auction.Auction
	ok, err := m.getJSON(auctionKey(item), &a)
	if err != nil || !ok {
		return nil, false
	}
	return &a, true
}

func (m *Manager) AuctionList() ([]*auction.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var index auctionIndex
	if _, err := m.getJSON(auctionIndexKey, &index); err != nil {
		return nil, err
	}
	out := make([]*auction.Auction, 0, len(index.Items))
	for _, item := range index.Items {
		var a auction.Auction
		ok, err := m.getJSON(auctionKey(item), &a)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: indexed auction %s missing", item)
		}
		out = append(out, &a)
	}
	return out, nil
}

// BadgePut mints a badge record. A record with the same identifier must not
// already exist: the insert-only contract is what makes the badge a single
// bearer capability.
func (m *Manager) BadgePut(record *auction.BadgeRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil badge record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := badgeKey(record.ID)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("state: badge %x already minted", record.ID)
	}
	return m.putJSON(key, record)
}

func (m *Manager) BadgeGet(id [32]byte) (*auction.BadgeRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record auction.BadgeRecord
	ok, err := m.getJSON(badgeKey(id), &record)
	if err != nil || !ok {
		return nil, false
	}
	return &record, true
}

func (m *Manager) BadgeSpend(id [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var record auction.BadgeRecord
	ok, err := m.getJSON(badgeKey(id), &record)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: badge %x not found", id)
	}
	if record.Spent {
		return fmt.Errorf("state: badge %x already spent", id)
	}
	record.Spent = true
	return m.putJSON(badgeKey(id), &record)
}

// BadgeNonce returns a monotonically increasing counter. Every call persists
// the increment, so badge identifiers stay unique across restarts.
func (m *Manager) BadgeNonce() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var nonce uint64
	raw, err := m.db.Get(badgeNonceKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return 0, err
	case len(raw) != 8:
		return 0, fmt.Errorf("state: corrupt badge nonce record")
	default:
		nonce = binary.BigEndian.Uint64(raw)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, nonce+1)
	if err := m.db.Put(badgeNonceKey, next); err != nil {
		return 0, err
	}
	return nonce, nil
}

// EscrowVaultAddress derives the module vault address from a fixed seed.
func (m *Manager) EscrowVaultAddress() [20]byte {
	m.vaultOnce.Do(func() {
		hash := ethcrypto.Keccak256Hash([]byte(vaultSeed))
		copy(m.vault[:], hash[12:])
	})
	return m.vault
}

func (m *Manager) EscrowCredit(item auction.ItemID, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: invalid escrow credit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var record escrowRecord
	if _, err := m.getJSON(escrowKey(item), &record); err != nil {
		return err
	}
	if record.Amount == nil {
		record.Amount = big.NewInt(0)
	}
	record.Amount = new(big.Int).Add(record.Amount, amt)
	return m.putJSON(escrowKey(item), &record)
}

func (m *Manager) EscrowDebit(item auction.ItemID, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: invalid escrow debit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var record escrowRecord
	if _, err := m.getJSON(escrowKey(item), &record); err != nil {
		return err
	}
	if record.Amount == nil || record.Amount.Cmp(amt) < 0 {
		return fmt.Errorf("state: escrow balance underflow for %s", item)
	}
	record.Amount = new(big.Int).Sub(record.Amount, amt)
	return m.putJSON(escrowKey(item), &record)
}

func (m *Manager) EscrowBalance(item auction.ItemID) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record escrowRecord
	ok, err := m.getJSON(escrowKey(item), &record)
	if err != nil {
		return nil, err
	}
	if !ok || record.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(record.Amount), nil
}

func (m *Manager) ItemOwner(item auction.ItemID) ([20]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record ownerRecord
	ok, err := m.getJSON(itemOwnerKey(item), &record)
	if err != nil || !ok || len(record.Owner) != 20 {
		return [20]byte{}, false
	}
	var owner [20]byte
	copy(owner[:], record.Owner)
	return owner, true
}

// ItemTransfer moves ownership of an item. The transfer fails unless the item
// is currently held by the supplied transferor.
func (m *Manager) ItemTransfer(item auction.ItemID, from, to [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var record ownerRecord
	ok, err := m.getJSON(itemOwnerKey(item), &record)
	if err != nil {
		return err
	}
	if !ok || len(record.Owner) != 20 {
		return fmt.Errorf("state: item %s has no owner", item)
	}
	var owner [20]byte
	copy(owner[:], record.Owner)
	if owner != from {
		return fmt.Errorf("state: item %s not held by transferor", item)
	}
	record.Owner = append([]byte(nil), to[:]...)
	return m.putJSON(itemOwnerKey(item), &record)
}

func (m *Manager) IsAccount(addr [20]byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record accountRecord
	ok, err := m.getJSON(accountKey(addr[:]), &record)
	return err == nil && ok && record.Registered
}

func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record accountRecord
	if _, err := m.getJSON(accountKey(addr), &record); err != nil {
		return nil, err
	}
	if record.BalanceMKT == nil {
		record.BalanceMKT = big.NewInt(0)
	}
	return &types.Account{Nonce: record.Nonce, BalanceMKT: record.BalanceMKT}, nil
}

func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var record accountRecord
	if _, err := m.getJSON(accountKey(addr), &record); err != nil {
		return err
	}
	record.Nonce = account.Nonce
	record.BalanceMKT = account.BalanceMKT
	if record.BalanceMKT == nil {
		record.BalanceMKT = big.NewInt(0)
	}
	return m.putJSON(accountKey(addr), &record)
}

// RegisterAccount marks an address as a known ledger account. Only registered
// addresses may open auctions or place bids.
func (m *Manager) RegisterAccount(addr [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var record accountRecord
	if _, err := m.getJSON(accountKey(addr[:]), &record); err != nil {
		return err
	}
	record.Registered = true
	if record.BalanceMKT == nil {
		record.BalanceMKT = big.NewInt(0)
	}
	return m.putJSON(accountKey(addr[:]), &record)
}

// MintToken credits freshly minted payment tokens to an address.
func (m *Manager) MintToken(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var record accountRecord
	if _, err := m.getJSON(accountKey(addr[:]), &record); err != nil {
		return err
	}
	if record.BalanceMKT == nil {
		record.BalanceMKT = big.NewInt(0)
	}
	record.BalanceMKT = new(big.Int).Add(record.BalanceMKT, amount)
	return m.putJSON(accountKey(addr[:]), &record)
}

// MintItem records initial ownership of an item. Minting over an item that
// already has an owner is rejected.
func (m *Manager) MintItem(item auction.ItemID, owner [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exists, err := m.db.Has(itemOwnerKey(item))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("state: item %s already minted", item)
	}
	record := ownerRecord{Owner: append([]byte(nil), owner[:]...)}
	return m.putJSON(itemOwnerKey(item), &record)
}
