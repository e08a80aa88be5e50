package auction

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeAuctionCreated   = "auction.created"
	EventTypeBidPlaced        = "auction.bid_placed"
	EventTypeBidRefunded      = "auction.bid_refunded"
	EventTypeAuctionSettled   = "auction.settled"
	EventTypeAuctionCancelled = "auction.cancelled"
)

// NewCreatedEvent returns the canonical payload for a newly opened auction.
func NewCreatedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionCreated, a, nil)
}

// NewBidPlacedEvent returns the payload emitted when a bid enters escrow.
func NewBidPlacedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeBidPlaced, a, nil)
}

// NewBidRefundedEvent returns the payload emitted when an escrowed bid is
// returned to its bidder, either on outbid or on cancellation.
func NewBidRefundedEvent(a *Auction, bidder [20]byte, amount *big.Int) *types.Event {
	extra := map[string]string{
		"refundedBidder": hex.EncodeToString(bidder[:]),
		"refundedAmount": formatAmount(amount),
	}
	return newAuctionEvent(EventTypeBidRefunded, a, extra)
}

// NewSettledEvent returns the payload emitted when the item leaves custody.
func NewSettledEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionSettled, a, nil)
}

// NewCancelledEvent returns the payload emitted when the badge holder ends the
// auction early; the badge id recorded is the burned badge.
func NewCancelledEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionCancelled, a, nil)
}

func newAuctionEvent(eventType string, a *Auction, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["item"] = sanitized.Item.String()
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["badgeId"] = hex.EncodeToString(sanitized.BadgeID[:])
	attrs["status"] = sanitized.Status.String()
	attrs["createdEpoch"] = strconv.FormatUint(sanitized.CreatedEpoch, 10)
	attrs["endingEpoch"] = strconv.FormatUint(sanitized.EndingEpoch, 10)
	if sanitized.MinPrice != nil {
		attrs["minPrice"] = sanitized.MinPrice.String()
	}
	if sanitized.BuyPrice != nil {
		attrs["buyPrice"] = sanitized.BuyPrice.String()
	}
	if sanitized.HighestBid != nil {
		attrs["bidder"] = hex.EncodeToString(sanitized.HighestBid.Bidder[:])
		attrs["bidAmount"] = sanitized.HighestBid.Amount.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
