// Package registry は参加者登録のドメインロジックを提供する。
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/security"
	"github.com/narendra-goswami/bindshub/internal/workshop"
)

// emailPattern は登録メールアドレスの形式検証パターン。
// local@domain.tld の形だけを要求する緩い検証で、RFC完全準拠は狙わない。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Recorder は登録・削除のメトリクス記録を抽象化する。
type Recorder interface {
	RecordRegistration()
	RecordDeletion()
}

// Service は参加者登録のサービス層。
// ID採番、入力検証、削除時の出欠カスケードを提供する。
type Service struct {
	state     *workshop.State
	sanitizer security.InputSanitizerService
	metrics   Recorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(state *workshop.State, sanitizer security.InputSanitizerService, metrics Recorder) *Service {
	return &Service{
		state:     state,
		sanitizer: sanitizer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register は参加者を新規登録する。
// 全フィールド必須。入力はHTMLを除去した上で保存される。
// IDはスナップショット内の単調増加カウンターから採番されるため、
// 削除後の再登録で既存IDが再発行されることはない。
func (s *Service) Register(ctx context.Context, name, email, institute string) (*model.Participant, error) {
	name = s.sanitizer.Sanitize(name)
	email = s.sanitizer.Sanitize(email)
	institute = s.sanitizer.Sanitize(institute)

	if name == "" || email == "" || institute == "" {
		return nil, model.NewValidationError("氏名・メールアドレス・所属はすべて必須です")
	}
	if !emailPattern.MatchString(email) {
		return nil, model.NewValidationError(fmt.Sprintf("メールアドレスの形式が不正です: %s", email))
	}

	var created model.Participant
	err := s.state.Update(ctx, func(snap *model.Snapshot) error {
		created = model.Participant{
			ID:               model.FormatID(snap.NextSeq),
			Name:             name,
			Email:            email,
			Institute:        institute,
			RegistrationDate: s.now().Format("02/01/2006"),
		}
		snap.Participants = append(snap.Participants, created)
		snap.Attendance[created.ID] = []string{}
		snap.NextSeq++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}
	slog.Info("participant registered",
		slog.String("participant_id", created.ID),
		slog.String("institute", created.Institute),
	)
	return &created, nil
}

// Find はIDで参加者を検索する。見つからない場合は(nil, nil)を返す。
func (s *Service) Find(ctx context.Context, id string) (*model.Participant, error) {
	snap := s.state.Snapshot()
	if p := snap.FindParticipant(id); p != nil {
		return p, nil
	}
	return nil, nil
}

// Search は氏名またはIDに対する大文字小文字を無視した部分一致検索を行う。
// 空クエリは全参加者を登録順で返す。
func (s *Service) Search(ctx context.Context, query string) ([]model.Participant, error) {
	snap := s.state.Snapshot()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return snap.Participants, nil
	}

	matched := []model.Participant{}
	for _, p := range snap.Participants {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.ID), query) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Delete は参加者と対応する出欠エントリを削除する。
// 存在しないIDでもエラーにはしないが、状態の永続化は行う。
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.state.Update(ctx, func(snap *model.Snapshot) error {
		kept := snap.Participants[:0]
		for _, p := range snap.Participants {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		snap.Participants = kept
		delete(snap.Attendance, id)
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordDeletion()
	}
	slog.Info("participant deleted", slog.String("participant_id", id))
	return nil
}
