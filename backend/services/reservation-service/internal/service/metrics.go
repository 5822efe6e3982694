package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "reservation-service"

var tracer trace.Tracer = otel.Tracer(instrumentationName)

type counters struct {
	ledgerApplied       metric.Int64Counter
	ledgerRejected      metric.Int64Counter
	reservationsCreated metric.Int64Counter
	reservationsFailed  metric.Int64Counter
	reservationsClosed  metric.Int64Counter
	compensations       metric.Int64Counter
	invariantViolations metric.Int64Counter
	creditsApplied      metric.Int64Counter
}

func newCounters() counters {
	meter := otel.Meter(instrumentationName)
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return counters{
		ledgerApplied:       counter("ledger_transactions_total", "Ledger transactions appended or replayed"),
		ledgerRejected:      counter("ledger_rejections_total", "Ledger applies rejected for insufficient funds"),
		reservationsCreated: counter("reservations_created_total", "Reservations confirmed"),
		reservationsFailed:  counter("reservations_failed_total", "Reservation attempts that did not confirm"),
		reservationsClosed:  counter("reservations_closed_total", "Reservations moved to a terminal state"),
		compensations:       counter("reservation_compensations_total", "Compensating refunds issued"),
		invariantViolations: counter("reservation_invariant_violations_total", "Sagas left needing manual reconciliation"),
		creditsApplied:      counter("wallet_credits_total", "External payment credits processed"),
	}
}
