package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	depositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_deposits_cents_total",
			Help: "Total cents deposited per event",
		},
		[]string{"event_id"},
	)

	withdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_withdrawals_cents_total",
			Help: "Total cents withdrawn per event",
		},
		[]string{"event_id"},
	)

	bidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Accepted bids per outcome",
		},
		[]string{"outcome"},
	)

	salesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_sales_total",
			Help: "Completed sales per sale type",
		},
		[]string{"sale_type"},
	)

	activeListings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_active_listings",
			Help: "Listings currently active",
		},
	)

	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_settlements_total",
			Help: "Auction settlements per result",
		},
		[]string{"result"},
	)
)

func TrackDeposit(eventID string, amount int64) {
	depositsTotal.WithLabelValues(eventID).Add(float64(amount))
}

func TrackWithdrawal(eventID string, amount int64) {
	withdrawalsTotal.WithLabelValues(eventID).Add(float64(amount))
}

func TrackBid(outcome string) {
	bidsTotal.WithLabelValues(outcome).Inc()
}

func TrackSale(saleType string) {
	salesTotal.WithLabelValues(saleType).Inc()
}

func TrackSettlement(result string) {
	settlementsTotal.WithLabelValues(result).Inc()
}

func SetActiveListings(n int) {
	activeListings.Set(float64(n))
}

func ListingOpened() { activeListings.Inc() }
func ListingClosed() { activeListings.Dec() }
