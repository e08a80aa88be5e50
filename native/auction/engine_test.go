package auction

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"nftmarket/core/epoch"
	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

type mockState struct {
	auctions   map[ItemID]*Auction
	order      []ItemID
	badges     map[[32]byte]*BadgeRecord
	badgeSeq   uint64
	escrow     map[ItemID]*big.Int
	itemOwners map[ItemID][20]byte
	accounts   map[[20]byte]*types.Account
	accountSet map[[20]byte]bool
	vault      [20]byte
}

func newMockState() *mockState {
	return &mockState{
		auctions:   make(map[ItemID]*Auction),
		badges:     make(map[[32]byte]*BadgeRecord),
		escrow:     make(map[ItemID]*big.Int),
		itemOwners: make(map[ItemID][20]byte),
		accounts:   make(map[[20]byte]*types.Account),
		accountSet: make(map[[20]byte]bool),
		vault:      newTestAddress(0xEE),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestItem(fill byte) ItemID {
	var item ItemID
	copy(item.Resource[:], bytes.Repeat([]byte{0xC0}, 32))
	copy(item.Instance[:], bytes.Repeat([]byte{fill}, 32))
	return item
}

func (m *mockState) AuctionPut(a *Auction) error {
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return err
	}
	if _, ok := m.auctions[sanitized.Item]; !ok {
		m.order = append(m.order, sanitized.Item)
	}
	m.auctions[sanitized.Item] = sanitized
	return nil
}

func (m *mockState) AuctionGet(item ItemID) (*Auction, bool) {
	a, ok := m.auctions[item]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (m *mockState) AuctionList() ([]*Auction, error) {
	out := make([]*Auction, 0, len(m.order))
	for _, item := range m.order {
		out = append(out, m.auctions[item].Clone())
	}
	return out, nil
}

func (m *mockState) BadgePut(record *BadgeRecord) error {
	if record == nil {
		return fmt.Errorf("nil badge record")
	}
	if _, ok := m.badges[record.ID]; ok {
		return fmt.Errorf("badge already minted")
	}
	m.badges[record.ID] = record.Clone()
	return nil
}

func (m *mockState) BadgeGet(id [32]byte) (*BadgeRecord, bool) {
	record, ok := m.badges[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) BadgeSpend(id [32]byte) error {
	record, ok := m.badges[id]
	if !ok {
		return fmt.Errorf("unknown badge")
	}
	record.Spent = true
	return nil
}

func (m *mockState) BadgeNonce() (uint64, error) {
	nonce := m.badgeSeq
	m.badgeSeq++
	return nonce, nil
}

func (m *mockState) EscrowVaultAddress() [20]byte { return m.vault }

func (m *mockState) EscrowCredit(item ItemID, amt *big.Int) error {
	current := m.escrow[item]
	if current == nil {
		current = big.NewInt(0)
	}
	m.escrow[item] = new(big.Int).Add(current, amt)
	return nil
}

func (m *mockState) EscrowDebit(item ItemID, amt *big.Int) error {
	current := m.escrow[item]
	if current == nil || current.Cmp(amt) < 0 {
		return fmt.Errorf("escrow balance underflow")
	}
	m.escrow[item] = new(big.Int).Sub(current, amt)
	return nil
}

func (m *mockState) EscrowBalance(item ItemID) (*big.Int, error) {
	current := m.escrow[item]
	if current == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

func (m *mockState) ItemOwner(item ItemID) ([20]byte, bool) {
	owner, ok := m.itemOwners[item]
	return owner, ok
}

func (m *mockState) ItemTransfer(item ItemID, from, to [20]byte) error {
	owner, ok := m.itemOwners[item]
	if !ok || owner != from {
		return fmt.Errorf("item not held by transferor")
	}
	m.itemOwners[item] = to
	return nil
}

func (m *mockState) IsAccount(addr [20]byte) bool { return m.accountSet[addr] }

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{BalanceMKT: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) registerAccount(addr [20]byte, balance int64) {
	m.accountSet[addr] = true
	m.accounts[addr] = &types.Account{BalanceMKT: big.NewInt(balance)}
}

func (m *mockState) mintItem(item ItemID, owner [20]byte) {
	m.itemOwners[item] = owner
}

func (m *mockState) balanceOf(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.BalanceMKT == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.BalanceMKT)
}

type recordingEmitter struct {
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	r.events = append(r.events, carrier.Event())
}

func (r *recordingEmitter) typeSequence() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

type pausedView struct{ paused bool }

func (p pausedView) IsPaused(string) bool { return p.paused }

func newTestEngine() (*Engine, *mockState, *epoch.Manual) {
	state := newMockState()
	clock := epoch.NewManual(0)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEpochSource(clock)
	return engine, state, clock
}

func mustCreate(t *testing.T, engine *Engine, state *mockState, seller [20]byte, item ItemID, minPrice, buyPrice *big.Int, period uint64) CancelBadge {
	t.Helper()
	state.registerAccount(seller, 0)
	state.mintItem(item, seller)
	_, badge, err := engine.CreateAuction(seller, item, minPrice, buyPrice, period)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return badge
}

func TestCreateAuctionEscrowsItemAndMintsBadge(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	badge := mustCreate(t, engine, state, seller, item, nil, nil, 10)

	if owner, ok := state.ItemOwner(item); !ok || owner != state.vault {
		t.Fatalf("expected item escrowed in module vault, owner=%x", owner)
	}
	stored, ok, err := engine.GetAuction(item)
	if err != nil || !ok {
		t.Fatalf("expected stored auction, ok=%v err=%v", ok, err)
	}
	if stored.Status != AuctionActive {
		t.Fatalf("unexpected status %s", stored.Status)
	}
	if stored.EndingEpoch != 10 {
		t.Fatalf("unexpected ending epoch %d", stored.EndingEpoch)
	}
	if stored.BadgeID != badge.ID || badge.Item != item {
		t.Fatalf("badge not bound to auction")
	}
	record, ok := state.BadgeGet(badge.ID)
	if !ok || record.Spent {
		t.Fatalf("expected live badge record")
	}

	// A second auction for the same escrowed item must be impossible, so no
	// second badge can ever be minted for it.
	if _, _, err := engine.CreateAuction(seller, item, nil, nil, 10); !errors.Is(err, ErrItemNotOwned) {
		t.Fatalf("expected ErrItemNotOwned, got %v", err)
	}
}

func TestCreateAuctionValidation(t *testing.T) {
	seller := newTestAddress(0x01)
	stranger := newTestAddress(0x02)
	item := newTestItem(0xA1)

	cases := []struct {
		name     string
		setup    func(*mockState)
		seller   [20]byte
		min, buy *big.Int
		period   uint64
		wantErr  error
	}{
		{
			name:    "seller not an account",
			setup:   func(m *mockState) { m.mintItem(item, seller) },
			seller:  seller,
			period:  5,
			wantErr: ErrNotAccount,
		},
		{
			name: "zero period",
			setup: func(m *mockState) {
				m.registerAccount(seller, 0)
				m.mintItem(item, seller)
			},
			seller:  seller,
			period:  0,
			wantErr: ErrInvalidPeriod,
		},
		{
			name: "non-positive min price",
			setup: func(m *mockState) {
				m.registerAccount(seller, 0)
				m.mintItem(item, seller)
			},
			seller:  seller,
			min:     big.NewInt(0),
			period:  5,
			wantErr: ErrInvalidAmount,
		},
		{
			name: "min above buy price",
			setup: func(m *mockState) {
				m.registerAccount(seller, 0)
				m.mintItem(item, seller)
			},
			seller:  seller,
			min:     big.NewInt(200),
			buy:     big.NewInt(100),
			period:  5,
			wantErr: ErrPriceBounds,
		},
		{
			name: "item owned by someone else",
			setup: func(m *mockState) {
				m.registerAccount(seller, 0)
				m.mintItem(item, stranger)
			},
			seller:  seller,
			period:  5,
			wantErr: ErrItemNotOwned,
		},
		{
			name: "item unknown to the ledger",
			setup: func(m *mockState) {
				m.registerAccount(seller, 0)
			},
			seller:  seller,
			period:  5,
			wantErr: ErrItemNotOwned,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, state, _ := newTestEngine()
			tc.setup(state)
			_, _, err := engine.CreateAuction(tc.seller, item, tc.min, tc.buy, tc.period)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if _, ok := state.AuctionGet(item); ok {
				t.Fatalf("failed create must not store an auction")
			}
			if owner, ok := state.ItemOwner(item); ok && owner == state.vault {
				t.Fatalf("failed create must leave the item with its owner")
			}
		})
	}
}

func TestBidRefundsPreviousBidder(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x0A)
	bidderB := newTestAddress(0x0B)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)
	state.registerAccount(bidderA, 1_000)
	state.registerAccount(bidderB, 1_000)

	if err := engine.PlaceBid(bidderA, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if got := state.balanceOf(bidderA); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("bidder A balance after bid: %s", got)
	}
	escrowed, _ := state.EscrowBalance(item)
	if escrowed.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("escrow after first bid: %s", escrowed)
	}

	if err := engine.PlaceBid(bidderB, item, TokenMKT, big.NewInt(200)); err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if got := state.balanceOf(bidderA); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("bidder A must be refunded exactly, balance: %s", got)
	}
	if got := state.balanceOf(bidderB); got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("bidder B balance after bid: %s", got)
	}
	escrowed, _ = state.EscrowBalance(item)
	if escrowed.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("escrow must hold only the latest bid, got %s", escrowed)
	}
	stored, _, _ := engine.GetAuction(item)
	if stored.HighestBid == nil || stored.HighestBid.Bidder != bidderB {
		t.Fatalf("highest bid slot not replaced")
	}
}

func TestBidNotStrictlyHigherRejected(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x0A)
	bidderB := newTestAddress(0x0B)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)
	state.registerAccount(bidderA, 1_000)
	state.registerAccount(bidderB, 1_000)

	if err := engine.PlaceBid(bidderA, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	for _, amount := range []int64{100, 50} {
		if err := engine.PlaceBid(bidderB, item, TokenMKT, big.NewInt(amount)); !errors.Is(err, ErrBidTooLow) {
			t.Fatalf("bid of %d: expected ErrBidTooLow, got %v", amount, err)
		}
	}
	// Rejections must leave all balances and the escrow untouched.
	if got := state.balanceOf(bidderB); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("rejected bidder balance changed: %s", got)
	}
	escrowed, _ := state.EscrowBalance(item)
	if escrowed.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("escrow changed on rejected bid: %s", escrowed)
	}
}

func TestBidPreconditions(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x0A)
	stranger := newTestAddress(0x0C)
	item := newTestItem(0xA1)
	missing := newTestItem(0xFF)

	mustCreate(t, engine, state, seller, item, big.NewInt(100), big.NewInt(500), 10)
	state.registerAccount(bidder, 400)

	if err := engine.PlaceBid(bidder, missing, TokenMKT, big.NewInt(100)); !errors.Is(err, ErrAuctionNotFound) {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
	if err := engine.PlaceBid(bidder, item, "BTC", big.NewInt(100)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := engine.PlaceBid(stranger, item, TokenMKT, big.NewInt(100)); !errors.Is(err, ErrNotAccount) {
		t.Fatalf("expected ErrNotAccount, got %v", err)
	}
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(99)); !errors.Is(err, ErrBelowMinPrice) {
		t.Fatalf("expected ErrBelowMinPrice, got %v", err)
	}
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(501)); !errors.Is(err, ErrAboveBuyPrice) {
		t.Fatalf("expected ErrAboveBuyPrice, got %v", err)
	}
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(450)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	clock.Set(10)
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(100)); !errors.Is(err, ErrAuctionExpired) {
		t.Fatalf("expected ErrAuctionExpired, got %v", err)
	}
}

func TestBuyPriceSettlesWithinBidCall(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x0A)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, big.NewInt(100), 10)
	state.registerAccount(bidder, 500)

	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("buy-price bid: %v", err)
	}
	if owner, ok := state.ItemOwner(item); !ok || owner != bidder {
		t.Fatalf("item must be delivered to the buyer, owner=%x", owner)
	}
	if got := state.balanceOf(seller); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("seller balance after buy: %s", got)
	}
	escrowed, _ := state.EscrowBalance(item)
	if escrowed.Sign() != 0 {
		t.Fatalf("escrow must be drained, got %s", escrowed)
	}
	stored, _, _ := engine.GetAuction(item)
	if stored.Status != AuctionSold {
		t.Fatalf("expected sold status, got %s", stored.Status)
	}

	// The item has left custody: any further bid must be rejected.
	state.registerAccount(newTestAddress(0x0B), 500)
	if err := engine.PlaceBid(newTestAddress(0x0B), item, TokenMKT, big.NewInt(200)); !errors.Is(err, ErrAuctionSettled) {
		t.Fatalf("expected ErrAuctionSettled, got %v", err)
	}
}

func TestFinishBeforeExpiryFails(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)

	clock.Set(9)
	if err := engine.Finish(item); !errors.Is(err, ErrAuctionInProgress) {
		t.Fatalf("expected ErrAuctionInProgress, got %v", err)
	}
}

func TestFinishDeliversItemAndPayment(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x0A)
	bidderB := newTestAddress(0x0B)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)
	state.registerAccount(bidderA, 1_000)
	state.registerAccount(bidderB, 1_000)

	if err := engine.PlaceBid(bidderA, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	if err := engine.PlaceBid(bidderB, item, TokenMKT, big.NewInt(200)); err != nil {
		t.Fatalf("bid B: %v", err)
	}

	clock.Set(11)
	if err := engine.Finish(item); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if owner, _ := state.ItemOwner(item); owner != bidderB {
		t.Fatalf("winner must receive the item, owner=%x", owner)
	}
	if got := state.balanceOf(seller); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("seller must receive exactly the winning bid, got %s", got)
	}
	if got := state.balanceOf(bidderA); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("outbid bidder net change must be zero, got %s", got)
	}
	escrowed, _ := state.EscrowBalance(item)
	if escrowed.Sign() != 0 {
		t.Fatalf("escrow must be drained, got %s", escrowed)
	}

	// Settlement is not idempotent: a second finish must be rejected, never
	// silently re-executed.
	if err := engine.Finish(item); !errors.Is(err, ErrAuctionSettled) {
		t.Fatalf("expected ErrAuctionSettled, got %v", err)
	}
}

func TestFinishWithoutBidsReturnsItem(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)

	clock.Set(10)
	if err := engine.Finish(item); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if owner, _ := state.ItemOwner(item); owner != seller {
		t.Fatalf("item must return to the seller, owner=%x", owner)
	}
	if got := state.balanceOf(seller); got.Sign() != 0 {
		t.Fatalf("no payment may move without bids, got %s", got)
	}
	stored, _, _ := engine.GetAuction(item)
	if stored.Status != AuctionPassed {
		t.Fatalf("expected passed status, got %s", stored.Status)
	}
}

func TestCancelRefundsBidAndBurnsBadge(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x0A)
	item := newTestItem(0xA1)

	badge := mustCreate(t, engine, state, seller, item, nil, nil, 10)
	state.registerAccount(bidder, 1_000)
	if err := engine.PlaceBid(bidder, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := engine.Cancel(badge); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := state.balanceOf(bidder); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("bidder must be refunded exactly, got %s", got)
	}
	if owner, _ := state.ItemOwner(item); owner != seller {
		t.Fatalf("item must return to the seller, owner=%x", owner)
	}
	stored, _, _ := engine.GetAuction(item)
	if stored.Status != AuctionCancelled {
		t.Fatalf("expected cancelled status, got %s", stored.Status)
	}
	if stored.HighestBid != nil {
		t.Fatalf("bid slot must be cleared on cancellation")
	}

	// The badge was burned: it cannot authorize a second cancellation.
	if err := engine.Cancel(badge); !errors.Is(err, ErrBadgeSpent) {
		t.Fatalf("expected ErrBadgeSpent, got %v", err)
	}
}

func TestCancelBadgeMismatch(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	itemA := newTestItem(0xA1)
	itemB := newTestItem(0xB2)

	badgeA := mustCreate(t, engine, state, seller, itemA, nil, nil, 10)
	mustCreate(t, engine, state, seller, itemB, nil, nil, 10)

	forged := CancelBadge{ID: badgeA.ID, Item: itemB}
	if err := engine.Cancel(forged); !errors.Is(err, ErrBadgeMismatch) {
		t.Fatalf("expected ErrBadgeMismatch for forged payload, got %v", err)
	}

	unknown := CancelBadge{ID: NewBadgeID(itemA, seller, 999), Item: itemA}
	if err := engine.Cancel(unknown); !errors.Is(err, ErrBadgeMismatch) {
		t.Fatalf("expected ErrBadgeMismatch for unknown badge, got %v", err)
	}

	if stored, _, _ := engine.GetAuction(itemA); stored.Status != AuctionActive {
		t.Fatalf("failed cancel must leave the auction active")
	}
}

func TestCancelAfterExpiryFails(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	badge := mustCreate(t, engine, state, seller, item, nil, nil, 10)

	clock.Set(10)
	if err := engine.Cancel(badge); !errors.Is(err, ErrCancelAfterExpiry) {
		t.Fatalf("expected ErrCancelAfterExpiry, got %v", err)
	}
}

func TestReauctionAfterCancelMintsFreshBadge(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	badge := mustCreate(t, engine, state, seller, item, nil, nil, 10)
	if err := engine.Cancel(badge); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, fresh, err := engine.CreateAuction(seller, item, nil, nil, 10)
	if err != nil {
		t.Fatalf("re-auction: %v", err)
	}
	if fresh.ID == badge.ID {
		t.Fatalf("re-auction must mint a distinct badge")
	}
	if err := engine.Cancel(badge); !errors.Is(err, ErrBadgeSpent) {
		t.Fatalf("burned badge must stay unusable, got %v", err)
	}
	if err := engine.Cancel(fresh); err != nil {
		t.Fatalf("fresh badge must cancel the new listing: %v", err)
	}
}

func TestPauseGuardBlocksMutations(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	item := newTestItem(0xA1)

	badge := mustCreate(t, engine, state, seller, item, nil, nil, 10)
	engine.SetPauses(pausedView{paused: true})

	if _, _, err := engine.CreateAuction(seller, newTestItem(0xB2), nil, nil, 10); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on create, got %v", err)
	}
	if err := engine.PlaceBid(seller, item, TokenMKT, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on bid, got %v", err)
	}
	if err := engine.Finish(item); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on finish, got %v", err)
	}
	if err := engine.Cancel(badge); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on cancel, got %v", err)
	}
}

func TestBidQuotaPerEpoch(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x0A)
	itemA := newTestItem(0xA1)
	itemB := newTestItem(0xB2)

	mustCreate(t, engine, state, seller, itemA, nil, nil, 10)
	mustCreate(t, engine, state, seller, itemB, nil, nil, 10)
	state.registerAccount(bidder, 10_000)
	engine.SetQuota(nativecommon.Quota{MaxBidsPerEpoch: 1})

	if err := engine.PlaceBid(bidder, itemA, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if err := engine.PlaceBid(bidder, itemB, TokenMKT, big.NewInt(100)); !errors.Is(err, nativecommon.ErrQuotaBidsExceeded) {
		t.Fatalf("expected ErrQuotaBidsExceeded, got %v", err)
	}

	clock.Advance(1)
	if err := engine.PlaceBid(bidder, itemB, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("bid after epoch rollover: %v", err)
	}
}

func TestAuctionsKeepSettledEntries(t *testing.T) {
	engine, state, clock := newTestEngine()
	seller := newTestAddress(0x01)
	itemA := newTestItem(0xA1)
	itemB := newTestItem(0xB2)

	mustCreate(t, engine, state, seller, itemA, nil, nil, 5)
	mustCreate(t, engine, state, seller, itemB, nil, nil, 50)

	clock.Set(5)
	if err := engine.Finish(itemA); err != nil {
		t.Fatalf("finish: %v", err)
	}

	listed, err := engine.Auctions()
	if err != nil {
		t.Fatalf("auctions: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("settled entries must remain listed, got %d", len(listed))
	}
	if listed[0].Item != itemA || listed[0].Status != AuctionPassed {
		t.Fatalf("unexpected first entry: %s %s", listed[0].Item, listed[0].Status)
	}
	if listed[1].Item != itemB || listed[1].Status != AuctionActive {
		t.Fatalf("unexpected second entry: %s %s", listed[1].Item, listed[1].Status)
	}
}

func TestEventSequenceForBidAndFinish(t *testing.T) {
	engine, state, clock := newTestEngine()
	recorder := &recordingEmitter{}
	engine.SetEmitter(recorder)

	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x0A)
	bidderB := newTestAddress(0x0B)
	item := newTestItem(0xA1)

	mustCreate(t, engine, state, seller, item, nil, nil, 10)
	state.registerAccount(bidderA, 1_000)
	state.registerAccount(bidderB, 1_000)

	if err := engine.PlaceBid(bidderA, item, TokenMKT, big.NewInt(100)); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	if err := engine.PlaceBid(bidderB, item, TokenMKT, big.NewInt(200)); err != nil {
		t.Fatalf("bid B: %v", err)
	}
	clock.Set(10)
	if err := engine.Finish(item); err != nil {
		t.Fatalf("finish: %v", err)
	}

	want := []string{
		EventTypeAuctionCreated,
		EventTypeBidPlaced,
		EventTypeBidRefunded,
		EventTypeBidPlaced,
		EventTypeAuctionSettled,
	}
	got := recorder.typeSequence()
	if len(got) != len(want) {
		t.Fatalf("unexpected event count: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	refund := recorder.events[2]
	if refund.Attributes["refundedBidder"] == "" || refund.Attributes["refundedAmount"] != "100" {
		t.Fatalf("refund event must carry the refunded amount: %v", refund.Attributes)
	}
}
