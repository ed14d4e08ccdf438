// Package workshop はワークショップ状態のオーナーシップを提供する。
// 状態はこのパッケージのStateだけが保持し、各サービスは参照を受け取って
// 読み取りと変更適用を依頼する。
package workshop

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/narendra-goswami/bindshub/internal/model"
	"github.com/narendra-goswami/bindshub/internal/repository"
)

// SaveFailureRecorder はスナップショット保存失敗のメトリクス記録を抽象化する。
type SaveFailureRecorder interface {
	RecordSnapshotSaveFailure()
}

// State はワークショップ状態のメモリ上の唯一の保持者。
// すべての変更はUpdate経由で行われ、永続化に成功したクローンだけが
// メモリに反映される。保存失敗時はメモリも記憶域も変化しない。
type State struct {
	mu      sync.RWMutex
	snap    *model.Snapshot
	repo    repository.SnapshotRepository
	logger  *slog.Logger
	metrics SaveFailureRecorder
}

// New はStateを生成する。metricsはnilでもよい。
func New(repo repository.SnapshotRepository, logger *slog.Logger, metrics SaveFailureRecorder) *State {
	return &State{
		snap:    model.NewSnapshot(),
		repo:    repo,
		logger:  logger,
		metrics: metrics,
	}
}

// Load は記憶域からスナップショットを読み込む。
// キーが存在しない場合は空の初期状態のまま、パースに失敗した場合は
// 空の状態にリセットしてログに残す。いずれもエラーにはしない。
func (s *State) Load(ctx context.Context) error {
	data, found, err := s.repo.Load(ctx, model.StorageKey)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Info("no stored workshop data, starting empty", "key", model.StorageKey)
		return nil
	}

	snap := &model.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		s.logger.Error("stored workshop data is corrupt, resetting", "key", model.StorageKey, "error", err)
		s.mu.Lock()
		s.snap = model.NewSnapshot()
		s.mu.Unlock()
		return nil
	}
	snap.Normalize()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("workshop data loaded",
		"participants", len(snap.Participants),
		"next_seq", snap.NextSeq)
	return nil
}

// Snapshot は現在の状態の深いコピーを返す。
// 呼び出し側はコピーを自由に読めるが、変更してもStateには影響しない。
func (s *State) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Update は現在状態のクローンにfnを適用し、永続化に成功した場合のみ
// クローンをメモリに差し替える。fnがエラーを返した場合は何も起きない。
func (s *State) Update(ctx context.Context, fn func(snap *model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.snap.Clone()
	if err := fn(clone); err != nil {
		return err
	}

	if err := s.persist(ctx, clone); err != nil {
		return err
	}

	s.snap = clone
	return nil
}

// Replace は状態全体を与えられたスナップショットで置き換える。
// インポートと全消去で使用する。正規化してから永続化する。
func (s *State) Replace(ctx context.Context, snap *model.Snapshot) error {
	snap.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, snap); err != nil {
		return err
	}

	s.snap = snap
	return nil
}

func (s *State) persist(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return model.NewPersistenceFailedError(err.Error())
	}
	if err := s.repo.Save(ctx, model.StorageKey, data); err != nil {
		s.logger.Error("snapshot save failed", "error", err)
		if s.metrics != nil {
			s.metrics.RecordSnapshotSaveFailure()
		}
		return model.NewPersistenceFailedError(err.Error())
	}
	return nil
}
