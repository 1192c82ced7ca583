package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WalletOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carshare_wallet_operations_total",
			Help: "Wallet ledger operations by operation and result",
		},
		[]string{"op", "result"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carshare_booking_transitions_total",
			Help: "Booking status transitions by target status",
		},
		[]string{"to"},
	)

	SagaCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carshare_saga_compensations_total",
			Help: "Saga compensations by saga name and result",
		},
		[]string{"saga", "result"},
	)
)

// ObserveWalletOp records the outcome of a ledger operation.
func ObserveWalletOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	WalletOperations.WithLabelValues(op, result).Inc()
}
