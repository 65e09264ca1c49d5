// Package stripegateway клиент платежного шлюза Stripe для возвратов
package stripegateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
)

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Client шлюз возвратов поверх Stripe.
// Держит явную фабрику API-клиентов, ключованную по connected account —
// без глобального/модульного кеша: жизненный цикл клиентов ограничен
// жизненным циклом самого Client.
type Client struct {
	apiKey   string
	backends *stripe.Backends
	log      Logger

	mu      sync.Mutex
	clients map[string]*stripeclient.API // ключ — connected account ("" = платформа)
}

// NewClient создает новый шлюз возвратов
func NewClient(apiKey string, timeout time.Duration, log Logger) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		apiKey:   apiKey,
		backends: stripe.NewBackends(httpClient),
		log:      log,
		clients:  make(map[string]*stripeclient.API),
	}
}

// Refund выполняет идемпотентный возврат средств.
// Повтор с тем же IdempotencyKey вернет тот же результат без
// повторного денежного эффекта на стороне Stripe.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundReceipt, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("%w: empty payment reference", ErrInvalidRequest)
	}
	if req.AmountMinorUnits <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidRequest, req.AmountMinorUnits)
	}
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: empty idempotency key", ErrInvalidRequest)
	}

	api := c.clientFor(req.GatewayAccount)

	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.AmountMinorUnits),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	if req.GatewayAccount != "" {
		params.SetStripeAccount(req.GatewayAccount)
	}

	// Stripe различает payment intent и charge по префиксу референса
	if strings.HasPrefix(req.Reference, "pi_") {
		params.PaymentIntent = stripe.String(req.Reference)
	} else {
		params.Charge = stripe.String(req.Reference)
	}

	c.log.Info("Refund: issuing refund reference=%s amount=%d idempotency_key=%s",
		req.Reference, req.AmountMinorUnits, req.IdempotencyKey)

	refund, err := api.Refunds.New(params)
	if err != nil {
		c.log.Error("Refund: stripe call failed reference=%s: %v", req.Reference, err)
		return nil, fmt.Errorf("%w: reference=%s: %v", ErrGatewayUnavailable, req.Reference, err)
	}

	c.log.Info("Refund: refund issued id=%s status=%s amount=%d", refund.ID, refund.Status, refund.Amount)

	return &RefundReceipt{
		RefundID:    refund.ID,
		Status:      string(refund.Status),
		AmountMinor: refund.Amount,
	}, nil
}

// clientFor возвращает API-клиент для connected account, создавая его
// при первом обращении
func (c *Client) clientFor(account string) *stripeclient.API {
	c.mu.Lock()
	defer c.mu.Unlock()

	if api, ok := c.clients[account]; ok {
		return api
	}

	api := &stripeclient.API{}
	api.Init(c.apiKey, c.backends)
	c.clients[account] = api
	return api
}
