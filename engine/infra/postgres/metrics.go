package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const postgresMeterName = "airtide.postgres"

// registerPoolMetrics wires async gauges over the pool statistics and returns
// the unregister hook.
func registerPoolMetrics(pool *pgxpool.Pool) (func(), error) {
	meter := otel.GetMeterProvider().Meter(postgresMeterName)
	connsOpen, err := meter.Int64ObservableGauge(
		"db.pool.connections_open",
		metric.WithDescription("Total connections currently held by the pool"),
	)
	if err != nil {
		return nil, err
	}
	connsInUse, err := meter.Int64ObservableGauge(
		"db.pool.connections_in_use",
		metric.WithDescription("Connections currently acquired by callers"),
	)
	if err != nil {
		return nil, err
	}
	connsIdle, err := meter.Int64ObservableGauge(
		"db.pool.connections_idle",
		metric.WithDescription("Idle connections available for acquisition"),
	)
	if err != nil {
		return nil, err
	}
	connsMax, err := meter.Int64ObservableGauge(
		"db.pool.connections_max",
		metric.WithDescription("Configured maximum pool size"),
	)
	if err != nil {
		return nil, err
	}
	registration, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			stat := pool.Stat()
			observer.ObserveInt64(connsOpen, int64(stat.TotalConns()))
			observer.ObserveInt64(connsInUse, int64(stat.AcquiredConns()))
			observer.ObserveInt64(connsIdle, int64(stat.IdleConns()))
			observer.ObserveInt64(connsMax, int64(stat.MaxConns()))
			return nil
		},
		connsOpen, connsInUse, connsIdle, connsMax,
	)
	if err != nil {
		return nil, err
	}
	return func() { _ = registration.Unregister() }, nil
}
