package aiprovider

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/notevault/internal/errs"
)

// Disabled — реализация Completer на случай, когда AI-провайдер не
// сконфигурирован. Все вызовы возвращают errs.ErrProviderDisabled.
type Disabled struct{}

// NewDisabled создаёт выключенного провайдера.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Complete всегда возвращает errs.ErrProviderDisabled.
func (d *Disabled) Complete(_ context.Context, _ string) (*Result, error) {
	const op = "aiprovider.Disabled.Complete"
	return nil, fmt.Errorf("%s: %w", op, errs.ErrProviderDisabled)
}
