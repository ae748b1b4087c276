package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/store-sim/internal/core/domain"
)

const namespace = "store_sim"

// Observer exports simulation outcomes as prometheus metrics.
type Observer struct {
	transactions prometheus.Counter
	unitsSold    *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	restocked    *prometheus.CounterVec
	usersAdded   prometheus.Counter
	tickErrors   *prometheus.CounterVec
	orderSize    prometheus.Histogram
}

func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Transactions persisted and journaled.",
		}),
		unitsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_sold_total",
			Help:      "Units sold per item.",
		}, []string{"item_id"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Ticks that produced no transaction.",
		}, []string{"reason"}),
		restocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_restocked_total",
			Help:      "Units added by the restock policy per item.",
		}, []string{"item_id"}),
		usersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_added_total",
			Help:      "Users synthesized during the run.",
		}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Ticks aborted by an error, by kind.",
		}, []string{"kind"}),
		orderSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_units",
			Help:      "Units per recorded transaction.",
			Buckets:   prometheus.LinearBuckets(1, 10, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		o.transactions, o.unitsSold, o.skipped, o.restocked, o.usersAdded, o.tickErrors, o.orderSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) OrderRecorded(order domain.Order) {
	o.transactions.Inc()
	o.orderSize.Observe(float64(order.TotalQuantity()))
	for _, l := range order.Lines {
		o.unitsSold.WithLabelValues(itemLabel(l.ItemID)).Add(float64(l.Quantity))
	}
}

func (o *Observer) CycleSkipped(reason string) {
	o.skipped.WithLabelValues(reason).Inc()
}

func (o *Observer) Restocked(itemID domain.ItemID, amount int) {
	o.restocked.WithLabelValues(itemLabel(itemID)).Add(float64(amount))
}

func (o *Observer) UserAdded(domain.User) {
	o.usersAdded.Inc()
}

func (o *Observer) TickFailed(err error) {
	o.tickErrors.WithLabelValues(errorKind(err)).Inc()
}

func itemLabel(id domain.ItemID) string {
	return strconv.FormatInt(int64(id), 10)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "persistence"
	case errors.Is(err, domain.ErrInconsistentState):
		return "inconsistent"
	case errors.Is(err, domain.ErrUnknownItem), errors.Is(err, domain.ErrUnknownUser):
		return "unknown_reference"
	}
	return "other"
}
