package stripegateway

import "errors"

var (
	// ErrGatewayUnavailable возвращается, когда вызов шлюза не удался.
	// Ошибка retryable: благодаря идемпотентному ключу повтор всей
	// операции отмены безопасен.
	ErrGatewayUnavailable = errors.New("stripegateway: refund call failed")

	// ErrInvalidRequest возвращается при некорректных параметрах возврата
	ErrInvalidRequest = errors.New("stripegateway: invalid refund request")
)
