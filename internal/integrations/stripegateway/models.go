package stripegateway

// RefundRequest параметры возврата средств через шлюз
type RefundRequest struct {
	// Reference идентификатор исходного платежа (payment intent или charge)
	Reference string

	// AmountMinorUnits сумма возврата в минорных единицах валюты
	AmountMinorUnits int64

	// Currency трехбуквенный код валюты (ISO 4217)
	Currency string

	// IdempotencyKey детерминированный ключ: повтор с тем же ключом
	// производит не более одного реального возврата
	IdempotencyKey string

	// GatewayAccount connected account компании; пустая строка —
	// платеж проведен через платформенный аккаунт
	GatewayAccount string
}

// RefundReceipt результат успешного возврата
type RefundReceipt struct {
	RefundID    string
	Status      string
	AmountMinor int64
}
