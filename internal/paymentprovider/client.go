// Package paymentprovider реализует клиент платёжного шлюза ЮKassa:
// создание платежей для пополнения баланса и выплат для вывода средств.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client клиент ЮKassa.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	returnURL  string
	httpClient *http.Client
}

// NewClient создаёт новый клиент ЮKassa.
func NewClient(shopID, secretKey, returnURL string) *Client {
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     "https://api.yookassa.ru/v3",
		returnURL:  returnURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIURL заменяет адрес API. Используется в тестах.
func (c *Client) WithAPIURL(apiURL string) *Client {
	c.apiURL = apiURL
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	// Каждый запрос получает свой ключ идемпотентности, повтор при сетевой
	// ошибке не создаст второй платёж.
	req.Header.Set("Idempotence-Key", uuid.New().String())
	return req, nil
}

// CreatePayment отправляет запрос на создание платежа с подтверждением
// через redirect. В ответе приходит confirmation_url, на который нужно
// перенаправить пользователя для оплаты.
func (c *Client) CreatePayment(ctx context.Context, amount int64, description string, metadata map[string]string) (*CreatePaymentResponse, error) {
	reqParams := CreatePaymentRequest{
		Amount:  NewAmount(amount),
		Capture: true,
		Confirmation: Confirmation{
			Type:      "redirect",
			ReturnURL: c.returnURL,
		},
		Description: description,
		Metadata:    metadata,
	}
	req, err := c.newRequest(ctx, "POST", "/payments", reqParams)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("unexpected status: " + resp.Status)
	}

	var paymentResp CreatePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&paymentResp); err != nil {
		return nil, err
	}
	return &paymentResp, nil
}

// CreatePayout отправляет запрос на выплату средств пользователю.
// Вызывается после списания суммы с баланса: если выплата не удалась,
// списание откатывается вызывающей стороной.
func (c *Client) CreatePayout(ctx context.Context, amount int64, accountNumber string, metadata map[string]string) (*CreatePayoutResponse, error) {
	reqParams := CreatePayoutRequest{
		Amount: NewAmount(amount),
		PayoutDestination: PayoutDestination{
			Type:          "yoo_money",
			AccountNumber: accountNumber,
		},
		Metadata: metadata,
	}
	req, err := c.newRequest(ctx, "POST", "/payouts", reqParams)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("unexpected status: " + resp.Status)
	}

	var payoutResp CreatePayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&payoutResp); err != nil {
		return nil, err
	}
	return &payoutResp, nil
}
