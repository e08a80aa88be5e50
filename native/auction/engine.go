package auction

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"nftmarket/core/epoch"
	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
	"nftmarket/observability/metrics"
)

var errNilState = errors.New("auction engine: state not configured")

const moduleName = "auction"

// engineState is the ledger surface the engine mutates. The host guarantees
// each public operation runs serialized and the backend applies writes only
// for calls that pass every validation, so all checks happen strictly before
// any mutation.
type engineState interface {
	AuctionPut(*Auction) error
	AuctionGet(item ItemID) (*Auction, bool)
	AuctionList() ([]*Auction, error)
	BadgePut(*BadgeRecord) error
	BadgeGet(id [32]byte) (*BadgeRecord, bool)
	BadgeSpend(id [32]byte) error
	BadgeNonce() (uint64, error)
	EscrowVaultAddress() [20]byte
	EscrowCredit(item ItemID, amt *big.Int) error
	EscrowDebit(item ItemID, amt *big.Int) error
	EscrowBalance(item ItemID) (*big.Int, error)
	ItemOwner(item ItemID) ([20]byte, bool)
	ItemTransfer(item ItemID, from, to [20]byte) error
	IsAccount(addr [20]byte) bool
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine owns the auction registry: it dispatches create, bid, finish and
// cancel across the live auctions keyed by item identity, moving custody of
// items and escrowed payments through the configured state backend.
type Engine struct {
	mu        sync.Mutex
	state     engineState
	emitter   events.Emitter
	epochs    epoch.Source
	pauses    nativecommon.PauseView
	quota     nativecommon.Quota
	usage     map[[20]byte]nativecommon.QuotaNow
	telemetry *metrics.MarketMetrics
}

// NewEngine creates an auction engine with a no-op emitter and a manual epoch
// source starting at zero. Callers override both via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		epochs:    epoch.NewManual(0),
		usage:     make(map[[20]byte]nativecommon.QuotaNow),
		telemetry: metrics.Market(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetEpochSource overrides the epoch oracle. Passing nil resets the source to
// a manual counter at zero, primarily useful in tests.
func (e *Engine) SetEpochSource(src epoch.Source) {
	if src == nil {
		e.epochs = epoch.NewManual(0)
		return
	}
	e.epochs = src
}

// SetPauses wires the module pause view consulted by every mutating call.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetQuota configures the optional per-address bid quota. The zero quota
// disables the check.
func (e *Engine) SetQuota(q nativecommon.Quota) {
	e.mu.Lock()
	e.quota = q
	e.usage = make(map[[20]byte]nativecommon.QuotaNow)
	e.mu.Unlock()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) currentEpoch() uint64 {
	if e == nil || e.epochs == nil {
		return 0
	}
	return e.epochs.Current()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceMKT: big.NewInt(0)}
	}
	if acc.BalanceMKT == nil {
		acc.BalanceMKT = big.NewInt(0)
	}
	return acc
}

// transferToken moves payment tokens between two ledger accounts. The caller
// is responsible for having verified the source balance beforehand.
func (e *Engine) transferToken(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("auction: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.BalanceMKT.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.BalanceMKT = new(big.Int).Sub(fromAcc.BalanceMKT, amt)
	toAcc.BalanceMKT = new(big.Int).Add(toAcc.BalanceMKT, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// CreateAuction escrows the seller's item and opens a time-boxed listing. The
// returned badge is the only capability able to cancel the auction before its
// ending epoch; exactly one is minted per listing.
func (e *Engine) CreateAuction(seller [20]byte, item ItemID, minPrice, buyPrice *big.Int, epochPeriod uint64) (*Auction, CancelBadge, error) {
	if e == nil || e.state == nil {
		return nil, CancelBadge{}, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, CancelBadge{}, err
	}
	if !e.state.IsAccount(seller) {
		return nil, CancelBadge{}, ErrNotAccount
	}
	if epochPeriod == 0 {
		return nil, CancelBadge{}, ErrInvalidPeriod
	}
	if minPrice != nil && minPrice.Sign() <= 0 {
		return nil, CancelBadge{}, ErrInvalidAmount
	}
	if buyPrice != nil && buyPrice.Sign() <= 0 {
		return nil, CancelBadge{}, ErrInvalidAmount
	}
	if minPrice != nil && buyPrice != nil && minPrice.Cmp(buyPrice) > 0 {
		return nil, CancelBadge{}, ErrPriceBounds
	}
	owner, ok := e.state.ItemOwner(item)
	if !ok || owner != seller {
		return nil, CancelBadge{}, ErrItemNotOwned
	}
	if existing, exists := e.state.AuctionGet(item); exists && !existing.Status.Terminal() {
		return nil, CancelBadge{}, ErrAuctionExists
	}

	now := e.currentEpoch()
	nonce, err := e.state.BadgeNonce()
	if err != nil {
		return nil, CancelBadge{}, err
	}
	record := &BadgeRecord{
		ID:          NewBadgeID(item, seller, nonce),
		Item:        item,
		MintedEpoch: now,
	}
	a := &Auction{
		Item:         item,
		Seller:       seller,
		MinPrice:     copyPrice(minPrice),
		BuyPrice:     copyPrice(buyPrice),
		CreatedEpoch: now,
		EndingEpoch:  now + epochPeriod,
		BadgeID:      record.ID,
		Status:       AuctionActive,
	}
	if err := e.state.ItemTransfer(item, seller, e.state.EscrowVaultAddress()); err != nil {
		return nil, CancelBadge{}, err
	}
	if err := e.state.BadgePut(record); err != nil {
		return nil, CancelBadge{}, err
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, CancelBadge{}, err
	}
	e.emit(NewCreatedEvent(a))
	e.telemetry.AuctionCreated()
	return a.Clone(), record.Badge(), nil
}

// PlaceBid escrows a replacement highest bid. The previous bidder, when one
// exists, is refunded in full before the new bid is recorded so that two
// bidders' funds are never escrowed simultaneously. A bid matching the buy
// price exactly settles the auction within the same call.
func (e *Engine) PlaceBid(bidder [20]byte, item ItemID, token string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(item)
	if !ok {
		return ErrAuctionNotFound
	}
	if a.Status.Terminal() {
		return ErrAuctionSettled
	}
	now := e.currentEpoch()
	if now >= a.EndingEpoch {
		return ErrAuctionExpired
	}
	if _, err := NormalizeToken(token); err != nil {
		return err
	}
	if !e.state.IsAccount(bidder) {
		return ErrNotAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if a.MinPrice != nil && amount.Cmp(a.MinPrice) < 0 {
		return ErrBelowMinPrice
	}
	if a.HighestBid != nil && amount.Cmp(a.HighestBid.Amount) <= 0 {
		return ErrBidTooLow
	}
	if a.BuyPrice != nil && amount.Cmp(a.BuyPrice) > 0 {
		return ErrAboveBuyPrice
	}
	bidderAcc, err := e.state.GetAccount(bidder[:])
	if err != nil {
		return err
	}
	if ensureAccount(bidderAcc).BalanceMKT.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	vault := e.state.EscrowVaultAddress()
	// The item leaving custody marks settlement even if the status write was
	// lost; a bid against a drained vault must never be accepted.
	if owner, held := e.state.ItemOwner(item); !held || owner != vault {
		return ErrAuctionSettled
	}
	nextUsage, err := e.checkQuota(bidder, now, amount)
	if err != nil {
		return err
	}

	if a.HighestBid != nil {
		refund, err := e.state.EscrowBalance(item)
		if err != nil {
			return err
		}
		previous := a.HighestBid.Clone()
		if err := e.transferToken(vault, previous.Bidder, refund); err != nil {
			return err
		}
		if err := e.state.EscrowDebit(item, refund); err != nil {
			return err
		}
		e.emit(NewBidRefundedEvent(a, previous.Bidder, refund))
		e.telemetry.BidRefunded()
	}
	if err := e.transferToken(bidder, vault, amount); err != nil {
		return err
	}
	if err := e.state.EscrowCredit(item, amount); err != nil {
		return err
	}
	a.HighestBid = &Bid{Bidder: bidder, Amount: cloneBigInt(amount)}
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}
	e.usage[bidder] = nextUsage
	e.emit(NewBidPlacedEvent(a))
	e.telemetry.BidAccepted()

	if a.BuyPrice != nil && amount.Cmp(a.BuyPrice) == 0 {
		return e.settle(a)
	}
	return nil
}

// Finish settles an auction whose ending epoch has been reached. Anyone may
// invoke it: with a standing bid the item goes to the bidder and the escrowed
// payment to the seller, otherwise the item returns to the seller.
func (e *Engine) Finish(item ItemID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(item)
	if !ok {
		return ErrAuctionNotFound
	}
	if a.Status.Terminal() {
		return ErrAuctionSettled
	}
	if owner, held := e.state.ItemOwner(item); !held || owner != e.state.EscrowVaultAddress() {
		return ErrAuctionSettled
	}
	if e.currentEpoch() < a.EndingEpoch {
		return ErrAuctionInProgress
	}
	return e.settle(a)
}

// Cancel ends an auction early. Possession of the matching badge is both
// necessary and sufficient; the badge is burned so it cannot authorize a
// second cancellation, any standing bid is refunded and the item returns to
// the seller. Cancellation is rejected once the ending epoch has been
// reached: expiry settlement takes precedence for the benefit of the bidder.
func (e *Engine) Cancel(badge CancelBadge) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	record, ok := e.state.BadgeGet(badge.ID)
	if !ok || record.Item != badge.Item {
		return ErrBadgeMismatch
	}
	if record.Spent {
		return ErrBadgeSpent
	}
	a, ok := e.state.AuctionGet(badge.Item)
	if !ok {
		return ErrAuctionNotFound
	}
	if a.BadgeID != badge.ID {
		return ErrBadgeMismatch
	}
	if a.Status.Terminal() {
		return ErrAuctionSettled
	}
	vault := e.state.EscrowVaultAddress()
	if owner, held := e.state.ItemOwner(badge.Item); !held || owner != vault {
		return ErrAuctionSettled
	}
	if e.currentEpoch() >= a.EndingEpoch {
		return ErrCancelAfterExpiry
	}

	if a.HighestBid != nil {
		refund, err := e.state.EscrowBalance(a.Item)
		if err != nil {
			return err
		}
		previous := a.HighestBid.Clone()
		if err := e.transferToken(vault, previous.Bidder, refund); err != nil {
			return err
		}
		if err := e.state.EscrowDebit(a.Item, refund); err != nil {
			return err
		}
		a.HighestBid = nil
		e.emit(NewBidRefundedEvent(a, previous.Bidder, refund))
		e.telemetry.BidRefunded()
	}
	if err := e.state.BadgeSpend(badge.ID); err != nil {
		return err
	}
	if err := e.state.ItemTransfer(a.Item, vault, a.Seller); err != nil {
		return err
	}
	a.Status = AuctionCancelled
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(a))
	e.telemetry.Settled(a.Status.String())
	return nil
}

// GetAuction returns a copy of the auction keyed by the item identity.
func (e *Engine) GetAuction(item ItemID) (*Auction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.state.AuctionGet(item)
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

// Auctions returns every registry entry, settled ones included, in creation
// order. Entries are never removed: callers must inspect Status rather than
// assume presence implies a live listing.
func (e *Engine) Auctions() ([]*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.AuctionList()
}

// settle moves the item and any escrowed payment to their final recipients
// and marks the entry terminal. It must stay private: reaching it is only
// legitimate through an expired Finish or an exact buy-price bid.
func (e *Engine) settle(a *Auction) error {
	vault := e.state.EscrowVaultAddress()
	if a.HighestBid != nil {
		if err := e.state.ItemTransfer(a.Item, vault, a.HighestBid.Bidder); err != nil {
			return err
		}
		payment, err := e.state.EscrowBalance(a.Item)
		if err != nil {
			return err
		}
		if err := e.transferToken(vault, a.Seller, payment); err != nil {
			return err
		}
		if err := e.state.EscrowDebit(a.Item, payment); err != nil {
			return err
		}
		a.Status = AuctionSold
	} else {
		if err := e.state.ItemTransfer(a.Item, vault, a.Seller); err != nil {
			return err
		}
		a.Status = AuctionPassed
	}
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}
	e.emit(NewSettledEvent(a))
	e.telemetry.Settled(a.Status.String())
	return nil
}

func (e *Engine) checkQuota(addr [20]byte, nowEpoch uint64, amount *big.Int) (nativecommon.QuotaNow, error) {
	if e.quota == (nativecommon.Quota{}) {
		return e.usage[addr], nil
	}
	spend := uint64(math.MaxUint64)
	if amount.IsUint64() {
		spend = amount.Uint64()
	}
	return nativecommon.CheckQuota(e.quota, nowEpoch, e.usage[addr], 1, spend)
}

func copyPrice(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
