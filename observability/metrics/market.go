package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks auction activity for the market module.
type MarketMetrics struct {
	auctionsCreated prometheus.Counter
	bidsAccepted    prometheus.Counter
	bidsRefunded    prometheus.Counter
	settlements     *prometheus.CounterVec
	activeAuctions  prometheus.Gauge
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide market metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			auctionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_auctions_created_total",
				Help: "Count of auctions opened by sellers.",
			}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_accepted_total",
				Help: "Count of bids accepted into escrow.",
			}),
			bidsRefunded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_refunded_total",
				Help: "Count of escrowed bids refunded to outbid or cancelled bidders.",
			}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_settlements_total",
				Help: "Count of auction settlements by outcome.",
			}, []string{"outcome"}),
			activeAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_active_auctions",
				Help: "Number of auctions currently accepting bids.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.auctionsCreated,
			marketRegistry.bidsAccepted,
			marketRegistry.bidsRefunded,
			marketRegistry.settlements,
			marketRegistry.activeAuctions,
		)
	})
	return marketRegistry
}

// AuctionCreated records a newly opened auction.
func (m *MarketMetrics) AuctionCreated() {
	if m == nil {
		return
	}
	m.auctionsCreated.Inc()
	m.activeAuctions.Inc()
}

// BidAccepted records a bid accepted into escrow.
func (m *MarketMetrics) BidAccepted() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

// BidRefunded records an escrowed bid returned to its bidder.
func (m *MarketMetrics) BidRefunded() {
	if m == nil {
		return
	}
	m.bidsRefunded.Inc()
}

// Settled records a terminal transition with its outcome label.
func (m *MarketMetrics) Settled(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.activeAuctions.Dec()
}
