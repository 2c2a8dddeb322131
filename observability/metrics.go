package observability

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tot"

// Metrics aggregates the settlement counters exported by a node. Amount
// counters are float64 approximations of base-unit totals; exact accounting
// lives in state, metrics exist for dashboards and alerting.
type Metrics struct {
	TransfersSettled    prometheus.Counter
	TransfersRejected   *prometheus.CounterVec
	TaxCollected        prometheus.Counter
	TokensBurned        prometheus.Counter
	ConsumePayments     prometheus.Counter
	PoolReleases        prometheus.Counter
	PoolInconsistencies prometheus.Counter
	AuctionSeizures     prometheus.Counter
}

// NewMetrics registers the node metrics with the supplied registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_settled_total",
			Help:      "Completed taxed transfers, including exempt transfers.",
		}),
		TransfersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_rejected_total",
			Help:      "Transfers rejected before settlement, by reason.",
		}, []string{"reason"}),
		TaxCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tax_collected_base_units",
			Help:      "Cumulative tax charged across settlements, in base units.",
		}),
		TokensBurned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_burned_base_units",
			Help:      "Cumulative burn from tax distribution, in base units.",
		}),
		ConsumePayments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "consume_payments_total",
			Help:      "Tax-free treasury payments settled.",
		}),
		PoolReleases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pool_releases_total",
			Help:      "Successful vesting pool releases.",
		}),
		PoolInconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pool_inconsistencies_total",
			Help:      "Observations of released amounts exceeding the vesting entitlement.",
		}),
		AuctionSeizures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auction_seizures_total",
			Help:      "Forced auction ownership transfers.",
		}),
	}
}

// AddAmount converts a base-unit amount for a counter. Nil and negative
// values are ignored.
func AddAmount(counter prometheus.Counter, amount *big.Int) {
	if counter == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	counter.Add(value)
}
