// Package aiprovider инкапсулирует провайдера AI-дополнений.
// Сервису нужна единственная возможность: отправить промпт и получить
// текст с количеством израсходованных токенов. Компоненты зависят от
// интерфейса Completer; при отсутствии конфигурации подставляется
// реализация Disabled.
package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/magabrotheeeer/notevault/internal/errs"
)

// Result — ответ провайдера на промпт.
type Result struct {
	Text       string // Сгенерированный текст
	TokensUsed int    // Суммарное количество токенов запроса и ответа
}

// Completer описывает возможность AI-провайдера.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Result, error)
}

// Client реализует Completer поверх HTTP API провайдера.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient создаёт клиент AI-провайдера с ограниченным таймаутом.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete отправляет промпт и возвращает текст ответа с количеством токенов.
func (c *Client) Complete(ctx context.Context, prompt string) (*Result, error) {
	const op = "aiprovider.Complete"

	reqBody := completionRequest{
		Model: c.model,
		Messages: []completionMessage{
			{Role: "user", Content: prompt},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: unexpected status %s", op, errs.ErrUpstream, resp.Status)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: empty choices", op, errs.ErrUpstream)
	}

	return &Result{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: completion.Usage.TotalTokens,
	}, nil
}
