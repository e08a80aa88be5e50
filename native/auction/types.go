package auction

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// TokenMKT is the only payment currency the marketplace accepts.
const TokenMKT = "MKT"

// NormalizeToken ensures the provided token symbol matches the accepted
// payment currency and returns the canonical uppercase form.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed != TokenMKT {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, symbol)
	}
	return trimmed, nil
}

// ItemID is the canonical identity of a non-fungible item: the resource it was
// minted under and the instance within that resource. Both halves are carried
// verbatim so the identity survives round-tripping through text encodings.
type ItemID struct {
	Resource [32]byte
	Instance [32]byte
}

const itemIDBytesLen = 64

// Bytes returns the lossless binary form, resource followed by instance.
func (id ItemID) Bytes() []byte {
	buf := make([]byte, itemIDBytesLen)
	copy(buf, id.Resource[:])
	copy(buf[32:], id.Instance[:])
	return buf
}

// String returns the canonical lowercase hex form of Bytes.
func (id ItemID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// ItemIDFromBytes reconstructs an identity from its binary form.
func ItemIDFromBytes(b []byte) (ItemID, error) {
	var id ItemID
	if len(b) != itemIDBytesLen {
		return id, fmt.Errorf("auction: invalid item id length %d", len(b))
	}
	copy(id.Resource[:], b[:32])
	copy(id.Instance[:], b[32:])
	return id, nil
}

// ParseItemID reconstructs an identity from its canonical hex form.
func ParseItemID(s string) (ItemID, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(s, "0x")))
	if err != nil {
		return ItemID{}, fmt.Errorf("auction: invalid item id encoding: %w", err)
	}
	return ItemIDFromBytes(raw)
}

// MarshalText implements encoding.TextMarshaler.
func (id ItemID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ItemID) UnmarshalText(text []byte) error {
	parsed, err := ParseItemID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AuctionStatus tags the lifecycle state of an auction entry. Entries are
// never removed from the registry, so terminal states double as the settled
// marker that rejects late mutating calls.
type AuctionStatus uint8

const (
	// AuctionActive accepts bids until the ending epoch.
	AuctionActive AuctionStatus = iota
	// AuctionSold settled with a winning bidder, item and payment delivered.
	AuctionSold
	// AuctionPassed expired without bids, item returned to the seller.
	AuctionPassed
	// AuctionCancelled was ended early by the badge holder before expiry.
	AuctionCancelled
)

// Valid reports whether the status value is within the supported range.
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionActive, AuctionSold, AuctionPassed, AuctionCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the auction has settled and must reject mutations.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionSold || s == AuctionPassed || s == AuctionCancelled
}

// String returns the label used in events and RPC payloads.
func (s AuctionStatus) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionSold:
		return "sold"
	case AuctionPassed:
		return "passed"
	case AuctionCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Bid is the single escrowed highest bid of an auction. The slot is replaced
// wholesale on every outbid: the previous bidder is refunded in full before
// the replacement is recorded, so two bidders' funds are never escrowed at
// the same time.
type Bid struct {
	Bidder [20]byte `json:"bidder"`
	Amount *big.Int `json:"amount"`
}

// Clone returns a deep copy of the bid.
func (b *Bid) Clone() *Bid {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Auction captures the escrow custody and bidding state of a single item
// listing. While Status is AuctionActive the module vault owns the item;
// settlement moves it out exactly once.
type Auction struct {
	Item         ItemID        `json:"item"`
	Seller       [20]byte      `json:"seller"`
	MinPrice     *big.Int      `json:"minPrice,omitempty"`
	BuyPrice     *big.Int      `json:"buyPrice,omitempty"`
	HighestBid   *Bid          `json:"highestBid,omitempty"`
	CreatedEpoch uint64        `json:"createdEpoch"`
	EndingEpoch  uint64        `json:"endingEpoch"`
	BadgeID      [32]byte      `json:"badgeId"`
	Status       AuctionStatus `json:"status"`
}

// Clone returns a deep copy of the auction so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.MinPrice != nil {
		clone.MinPrice = new(big.Int).Set(a.MinPrice)
	}
	if a.BuyPrice != nil {
		clone.BuyPrice = new(big.Int).Set(a.BuyPrice)
	}
	clone.HighestBid = a.HighestBid.Clone()
	return &clone
}

// SanitizeAuction validates the supplied auction definition and returns a
// cloned instance. The function does not mutate the original value.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("auction: nil auction")
	}
	clone := a.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("auction: invalid status %d", clone.Status)
	}
	if clone.EndingEpoch <= clone.CreatedEpoch {
		return nil, fmt.Errorf("auction: ending epoch must follow creation epoch")
	}
	if clone.MinPrice != nil && clone.MinPrice.Sign() <= 0 {
		return nil, fmt.Errorf("auction: minimum price must be positive")
	}
	if clone.BuyPrice != nil && clone.BuyPrice.Sign() <= 0 {
		return nil, fmt.Errorf("auction: buy price must be positive")
	}
	if clone.MinPrice != nil && clone.BuyPrice != nil && clone.MinPrice.Cmp(clone.BuyPrice) > 0 {
		return nil, fmt.Errorf("auction: minimum price exceeds buy price")
	}
	if clone.HighestBid != nil {
		if clone.HighestBid.Amount == nil || clone.HighestBid.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("auction: escrowed bid amount must be positive")
		}
	}
	return clone, nil
}
