package auction

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// CancelBadge is the bearer capability returned to the seller at auction
// creation. Possession is the complete authorization proof for Cancel: there
// is no secondary seller-identity check. The immutable payload binds the badge
// to the auctioned item's resource and instance identity.
type CancelBadge struct {
	ID   [32]byte `json:"id"`
	Item ItemID   `json:"item"`
}

const badgeBytesLen = 32 + itemIDBytesLen

// Bytes returns the lossless binary form: badge id, resource, instance.
func (b CancelBadge) Bytes() []byte {
	buf := make([]byte, badgeBytesLen)
	copy(buf, b.ID[:])
	copy(buf[32:], b.Item.Bytes())
	return buf
}

// String returns the canonical lowercase hex form of Bytes.
func (b CancelBadge) String() string {
	return hex.EncodeToString(b.Bytes())
}

// ParseCancelBadge reconstructs a badge from its canonical hex form.
func ParseCancelBadge(s string) (CancelBadge, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(s, "0x")))
	if err != nil {
		return CancelBadge{}, fmt.Errorf("auction: invalid badge encoding: %w", err)
	}
	if len(raw) != badgeBytesLen {
		return CancelBadge{}, fmt.Errorf("auction: invalid badge length %d", len(raw))
	}
	var badge CancelBadge
	copy(badge.ID[:], raw[:32])
	item, err := ItemIDFromBytes(raw[32:])
	if err != nil {
		return CancelBadge{}, err
	}
	badge.Item = item
	return badge, nil
}

// MarshalText implements encoding.TextMarshaler.
func (b CancelBadge) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *CancelBadge) UnmarshalText(text []byte) error {
	parsed, err := ParseCancelBadge(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// BadgeRecord is the registry-side mint record backing a badge. Its presence
// enforces the single-mint policy; the Spent flag is the burn.
type BadgeRecord struct {
	ID          [32]byte `json:"id"`
	Item        ItemID   `json:"item"`
	MintedEpoch uint64   `json:"mintedEpoch"`
	Spent       bool     `json:"spent"`
}

// Clone returns a copy of the record.
func (r *BadgeRecord) Clone() *BadgeRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Badge derives the bearer value handed to the seller.
func (r *BadgeRecord) Badge() CancelBadge {
	if r == nil {
		return CancelBadge{}
	}
	return CancelBadge{ID: r.ID, Item: r.Item}
}

// NewBadgeID derives a deterministic badge identifier from the item under
// auction, the seller and a state-scoped mint nonce. The nonce keeps ids
// unique when the same item is re-auctioned after a settled listing.
func NewBadgeID(item ItemID, seller [20]byte, nonce uint64) [32]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], nonce)
	return ethcrypto.Keccak256Hash(item.Bytes(), seller[:], seq[:])
}
