package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Settlement anchors match results on the external game hub. Both calls can
// fail independently of game-state correctness and must never block a local
// state transition; callers treat failures as a skipped settlement.
type Settlement interface {
	ReportResult(ctx context.Context, matchID, player1, player2, winner string) (*SettlementReceipt, error)
	Cancel(ctx context.Context, matchID string) (*SettlementReceipt, error)
}

// SettlementReceipt is the hub's acknowledgement.
type SettlementReceipt struct {
	TxHash string `json:"tx_hash"`
}

// SettlementErrorCode is the closed classification of hub failures. The hub
// returns structured codes; nothing here parses free-text error messages.
type SettlementErrorCode string

const (
	SettleErrAlreadyLocked  SettlementErrorCode = "already_locked"
	SettleErrAlreadySettled SettlementErrorCode = "already_settled"
	SettleErrSessionMissing SettlementErrorCode = "session_missing"
	SettleErrTransient      SettlementErrorCode = "transient"
	SettleErrFatal          SettlementErrorCode = "fatal"
)

// SettlementError carries the classified code alongside the hub's message.
type SettlementError struct {
	Code    SettlementErrorCode
	Message string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement %s: %s", e.Code, e.Message)
}

// ClassifySettlementError maps any error from a Settlement call onto the
// closed code set. Unknown and transport-level errors count as transient so
// the caller can decide whether a retry is worth it.
func ClassifySettlementError(err error) SettlementErrorCode {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Code
	}
	return SettleErrTransient
}

// hubErrorCodes maps the hub's wire codes onto ours. Anything unmapped is
// fatal: it means a contract-level rejection we don't know how to retry.
var hubErrorCodes = map[string]SettlementErrorCode{
	"ALREADY_LOCKED":    SettleErrAlreadyLocked,
	"ALREADY_SETTLED":   SettleErrAlreadySettled,
	"SESSION_NOT_FOUND": SettleErrSessionMissing,
	"UNAVAILABLE":       SettleErrTransient,
	"TIMEOUT":           SettleErrTransient,
}

// HubClient talks to the game hub's settlement API over HTTP.
type HubClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHubClient reads the hub endpoint from the environment.
func NewHubClient() *HubClient {
	baseURL := os.Getenv("GAME_HUB_URL")
	if baseURL == "" {
		log.Fatal("GAME_HUB_URL environment variable is required")
	}
	token := os.Getenv("GAME_HUB_TOKEN")
	if token == "" {
		log.Fatal("GAME_HUB_TOKEN environment variable is required")
	}
	return &HubClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type reportResultRequest struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	Winner  string `json:"winner"`
}

func (c *HubClient) ReportResult(ctx context.Context, matchID, player1, player2, winner string) (*SettlementReceipt, error) {
	body := reportResultRequest{Player1: player1, Player2: player2, Winner: winner}
	return c.post(ctx, fmt.Sprintf("%s/api/v1/sessions/%s/result", c.BaseURL, matchID), body)
}

func (c *HubClient) Cancel(ctx context.Context, matchID string) (*SettlementReceipt, error) {
	return c.post(ctx, fmt.Sprintf("%s/api/v1/sessions/%s/cancel", c.BaseURL, matchID), struct{}{})
}

func (c *HubClient) post(ctx context.Context, url string, body interface{}) (*SettlementReceipt, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settlement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &SettlementError{Code: SettleErrTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var receipt SettlementReceipt
		if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
			return nil, fmt.Errorf("failed to decode settlement receipt: %w", err)
		}
		return &receipt, nil
	}

	var hubErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &hubErr); err != nil || hubErr.Code == "" {
		if resp.StatusCode >= 500 {
			return nil, &SettlementError{Code: SettleErrTransient, Message: string(raw)}
		}
		return nil, &SettlementError{Code: SettleErrFatal, Message: string(raw)}
	}

	code, ok := hubErrorCodes[hubErr.Code]
	if !ok {
		code = SettleErrFatal
	}
	return nil, &SettlementError{Code: code, Message: hubErr.Message}
}
