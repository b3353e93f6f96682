package memory

import (
	"fmt"

	"github.com/gosuda/leasekeep/internal/domain"
)

func notFound(caller string) error {
	return fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
}

func conflict(caller string) error {
	return fmt.Errorf("%s: %w", caller, domain.ErrConflict)
}
