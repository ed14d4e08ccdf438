package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/narendra-goswami/bindshub/internal/model"
)

// State はコントローラの状態を表す。
type State string

const (
	// StateIdle は待機中。
	StateIdle State = "idle"
	// StateScanning はスキャン中。
	StateScanning State = "scanning"
)

// Marker は出欠マーク操作を抽象化する。
type Marker interface {
	Mark(ctx context.Context, participantID, session string) (model.MarkResult, *model.Participant, error)
}

// Outcome はスキャンまたは手入力1回分の結果通知。
type Outcome struct {
	Result      model.MarkResult
	Participant *model.Participant
	Session     string
	Err         error
}

// Notifier は結果をUIや端末へ届けるコールバック。
type Notifier func(outcome Outcome)

// Controller はスキャンの状態機械 Idle → Scanning → Idle を駆動する。
// 最初の非空ペイロードを出欠マークに渡し、ストリームを止めて待機に戻る。
type Controller struct {
	mu      sync.Mutex
	state   State
	session string

	stream DecodeStream
	marker Marker
	notify Notifier
	logger *slog.Logger
}

// NewController はControllerを生成する。notifyはnilでもよい。
func NewController(stream DecodeStream, marker Marker, notify Notifier, logger *slog.Logger) *Controller {
	return &Controller{
		state:  StateIdle,
		stream: stream,
		marker: marker,
		notify: notify,
		logger: logger,
	}
}

// State は現在の状態を返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start はスキャンを開始する。
// セッション未選択、スキャン中の二重開始、ストリーム開始失敗の場合は
// Idleのままエラーを返す。
func (c *Controller) Start(ctx context.Context, session string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateScanning {
		return fmt.Errorf("scanner already running")
	}
	if session == "" {
		return model.NewNoSessionSelectedError()
	}
	if !model.IsValidSession(session) {
		return model.NewInvalidSessionError(session)
	}

	payloads, err := c.stream.Start()
	if err != nil {
		return model.NewScannerError(err.Error())
	}

	c.state = StateScanning
	c.session = session
	go c.consume(ctx, payloads, session)

	c.logger.Info("scanner started", slog.String("session", session))
	return nil
}

// Stop はスキャンを手動で中断する。
// 停止済み・エラーを返すストリームに対しても安全で、常にIdleへ戻る。
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.state == StateIdle {
		return
	}
	if err := c.stream.Stop(); err != nil {
		c.logger.Warn("scanner stop failed", "error", err)
	}
	c.state = StateIdle
	c.session = ""
}

// ManualEntry は手入力されたIDを正規化して出欠マークへ渡す。
// スキャン経路と同じ検証・通知を通る。
func (c *Controller) ManualEntry(ctx context.Context, participantID, session string) Outcome {
	id := strings.ToUpper(strings.TrimSpace(participantID))
	result, p, err := c.marker.Mark(ctx, id, session)
	outcome := Outcome{Result: result, Participant: p, Session: session, Err: err}
	if c.notify != nil {
		c.notify(outcome)
	}
	return outcome
}

// consume は最初の非空ペイロードを処理してスキャンを終える。
// 空行は読み飛ばす。チャネルが閉じた場合もIdleへ戻る。
func (c *Controller) consume(ctx context.Context, payloads <-chan string, session string) {
	for payload := range payloads {
		id := strings.ToUpper(strings.TrimSpace(payload))
		if id == "" {
			continue
		}

		result, p, err := c.marker.Mark(ctx, id, session)
		if c.notify != nil {
			c.notify(Outcome{Result: result, Participant: p, Session: session, Err: err})
		}
		break
	}

	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}
