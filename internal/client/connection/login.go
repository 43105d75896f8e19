package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"delivery-dispatch/internal/ports"
)

// StaticToken always hands out the same credential.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// PasswordLogin fetches a fresh driver token from POST /api/drivers/auth before every
// connection attempt, so an expired token is replaced on reconnect.
type PasswordLogin struct {
	BaseURL  string
	Email    string
	Password string
	Client   *http.Client
}

func (p *PasswordLogin) Token(ctx context.Context) (string, error) {
	body, err := json.Marshal(ports.AuthDriverInput{Email: p.Email, Password: p.Password})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(p.BaseURL, "/") + "/api/drivers/auth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("login: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ports.AuthDriverResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("login: decode response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("login: empty token")
	}
	return out.Token, nil
}
