package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/storefront/internal/core/service")

// withTx runs fn in a unit of work and commits when fn returns nil. The
// transaction is rolled back on every other path.
func withTx(ctx context.Context, uow port.UnitOfWork, fn func(tx port.Tx) error) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
