// Package errs определяет ошибки предметной области, на которые
// сервисы и HTTP-обработчики полагаются при выборе ответа клиенту.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — запрошенная подписка, клиент или пользователь не найдены там, где обязаны быть.
	ErrNotFound = errors.New("not found")
	// ErrValidation — некорректные входные данные: неизвестный тариф, отсутствующее обязательное поле.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized — подпись вебхука не прошла проверку; запрос отклоняется без повторов.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrProviderDisabled — платёжный или AI-провайдер не сконфигурирован.
	ErrProviderDisabled = errors.New("provider is not configured")
	// ErrUpstream — вызов внешнего провайдера завершился ошибкой или таймаутом.
	ErrUpstream = errors.New("upstream provider call failed")
	// ErrFeatureUnavailable — возможность недоступна на текущем тарифе.
	ErrFeatureUnavailable = errors.New("feature is not available on current plan")
)

// QuotaExceededError сообщает об исчерпании квоты и несёт значения
// для отображения клиенту.
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: used %d of %d", e.Used, e.Limit)
}

// IsQuotaExceeded извлекает QuotaExceededError из цепочки ошибок.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
