// Package idp integra o portal ao provedor de identidade que guarda as
// contas de acesso. Há duas implementações: o cliente HTTP da API
// administrativa (produção) e um provedor local sobre Postgres (dev/testes).
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmailTaken indica que já existe conta para o e-mail.
var ErrEmailTaken = errors.New("idp: e-mail já cadastrado")

// Client chama a API administrativa do provedor de identidade.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

// Config descreve credenciais essenciais para o cliente.
type Config struct {
	BaseURL    string
	ServiceKey string
}

// NewClient cria um novo cliente administrativo.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("idp: base url obrigatória")
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.New("idp: service key obrigatória")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		serviceKey: cfg.ServiceKey,
	}, nil
}

// CreateAccount provisiona uma conta com senha temporária e e-mail já
// confirmado, devolvendo o id da conta.
func (c *Client) CreateAccount(ctx context.Context, email, tempPassword string) (string, error) {
	body := map[string]any{
		"email":         strings.ToLower(strings.TrimSpace(email)),
		"password":      tempPassword,
		"email_confirm": true,
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/admin/users", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID  string `json:"id"`
		Msg string `json:"msg"`
	}
	status, err := c.do(req, &resp)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return "", ErrEmailTaken
	case status < 200 || status >= 300:
		return "", fmt.Errorf("idp: criar conta: status %d (%s)", status, resp.Msg)
	case resp.ID == "":
		return "", errors.New("idp: resposta sem id de conta")
	}
	return resp.ID, nil
}

// DeleteAccount remove uma conta (ação de compensação do provisionamento).
func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.baseURL+"/admin/users/"+accountID, nil)
	if err != nil {
		return err
	}

	status, err := c.do(req, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent && status != http.StatusNotFound {
		return fmt.Errorf("idp: remover conta: status %d", status)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("idp: %w", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("idp: decodificar resposta: %w", err)
		}
	}
	return resp.StatusCode, nil
}
