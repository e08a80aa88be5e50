package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaBidsExceeded    = errors.New("quota bids exceeded")
	ErrQuotaMKTCapExceeded  = errors.New("quota mkt cap exceeded")
	ErrQuotaCounterOverflow = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	BidCount uint32
	MKTUsed  uint64
	EpochID  uint64
}

// Quota defines the limits enforced for a module interaction per address.
// Counters reset when the epoch rolls over.
type Quota struct {
	MaxBidsPerEpoch uint32
	MaxMKTPerEpoch  uint64
}

// CheckQuota verifies whether the additional bid and token usage fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addBids uint32, addMKT uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addBids > 0 {
		if next.BidCount > math.MaxUint32-addBids {
			return prev, ErrQuotaCounterOverflow
		}
		next.BidCount += addBids
	}
	if q.MaxBidsPerEpoch > 0 && next.BidCount > q.MaxBidsPerEpoch {
		return prev, ErrQuotaBidsExceeded
	}

	if addMKT > 0 {
		if next.MKTUsed > math.MaxUint64-addMKT {
			return prev, ErrQuotaCounterOverflow
		}
		next.MKTUsed += addMKT
	}
	if q.MaxMKTPerEpoch > 0 && next.MKTUsed > q.MaxMKTPerEpoch {
		return prev, ErrQuotaMKTCapExceeded
	}

	return next, nil
}
