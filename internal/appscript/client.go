// Package appscript はGoogle Apps Script Webhookへの同期機能を提供する。
// 参加者と出欠記録を1件ずつWebhookへPOSTし、スプレッドシート側に反映させる。
package appscript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// Result はWebhookのレスポンス形式。
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client はApps Script Webhookのクライアント。
// URLが未設定の場合、すべての呼び出しは即座にエラーで短絡し、
// ネットワークアクセスは一切発生しない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	webhookURL string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, webhookURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// Enabled は同期先Webhookが設定されているかを返す。
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// AddParticipant は参加者1件をWebhookへ送信する。
func (c *Client) AddParticipant(ctx context.Context, p *model.Participant) error {
	payload := map[string]string{
		"action":           "addParticipant",
		"id":               p.ID,
		"name":             p.Name,
		"email":            p.Email,
		"institute":        p.Institute,
		"registrationDate": p.RegistrationDate,
	}
	return c.post(ctx, payload)
}

// AddAttendance は出欠記録1件をWebhookへ送信する。
func (c *Client) AddAttendance(ctx context.Context, participantID, name, session string) error {
	payload := map[string]string{
		"action":  "addAttendance",
		"id":      participantID,
		"name":    name,
		"session": session,
	}
	return c.post(ctx, payload)
}

// post はペイロードをJSONでPOSTし、レスポンスのsuccessフラグを検証する。
func (c *Client) post(ctx context.Context, payload map[string]string) error {
	if !c.Enabled() {
		return model.NewSyncDisabledError()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Webhookの呼び出しに失敗しました",
			slog.String("action", payload["action"]),
			slog.String("error", err.Error()),
		)
		return model.NewSyncFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Webhookがエラーステータスを返しました",
			slog.String("action", payload["action"]),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewSyncFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewSyncFailedError(fmt.Sprintf("レスポンスの読み取りに失敗しました: %v", err))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return model.NewSyncFailedError(fmt.Sprintf("レスポンスのパースに失敗しました: %v", err))
	}
	if !result.Success {
		return model.NewSyncFailedError(result.Error)
	}

	return nil
}
