package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/server/middleware"
)

const dateLayout = "2006-01-02"

func principalFrom(ctx context.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return domain.Principal{}, huma.Error401Unauthorized("missing principal")
	}
	return p, nil
}

// toHTTPError maps a core error onto an HTTP problem response.
func toHTTPError(op string, err error) error {
	var te *domain.TransitionError
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("not permitted")
	case errors.Is(err, domain.ErrUnknownPayment):
		return huma.Error404NotFound("unknown payment")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.As(err, &te):
		return huma.Error409Conflict(te.Error())
	case errors.Is(err, domain.ErrInvalidLedgerState),
		errors.Is(err, domain.ErrAlreadyFailed),
		errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAssignment):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, domain.ErrExternalUnavailable):
		return huma.Error503ServiceUnavailable("payment or email provider unavailable")
	default:
		log.Error().Err(err).Str("op", op).Msg("api: unexpected error")
		return huma.Error500InternalServerError("failed to " + op)
	}
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, huma.Error422UnprocessableEntity(field + " must be YYYY-MM-DD")
	}
	return t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, huma.Error422UnprocessableEntity(field + " must be a decimal number")
	}
	if err := domain.CheckMoney(field, d); err != nil {
		return decimal.Decimal{}, huma.Error422UnprocessableEntity(err.Error())
	}
	return d, nil
}
