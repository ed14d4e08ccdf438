// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// StorageKey はワークショップ状態スナップショットを保存する固定キー。
const StorageKey = "BINDSWorkshopData"

// IDPrefix は参加者IDの接頭辞。
const IDPrefix = "BINDS-"

// Sessions はワークショップの固定6セッション。
// 表示・シート・CSVのすべてでこの順序を使用する。
var Sessions = []string{
	"Day1-Morning",
	"Day1-Afternoon",
	"Day2-Morning",
	"Day2-Afternoon",
	"Day3-Morning",
	"Day3-Afternoon",
}

// IsValidSession はセッション名が固定6セッションに含まれるかを返す。
func IsValidSession(session string) bool {
	for _, s := range Sessions {
		if s == session {
			return true
		}
	}
	return false
}

// Participant は登録済み参加者を表す。
// 登録後は削除以外の変更操作を持たないイミュータブルなレコード。
type Participant struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Institute        string `json:"institute"`
	RegistrationDate string `json:"registrationDate"`
}

// Snapshot はワークショップ状態全体を表す。
// 固定キー配下に1つのJSON blobとして丸ごと永続化される。
// NextSeqは参加者IDの単調増加カウンター。リスト長から導出しないことで
// 削除後の再登録でIDが再発行されることを防ぐ。
type Snapshot struct {
	Participants []Participant       `json:"participants"`
	Attendance   map[string][]string `json:"attendance"`
	NextSeq      int                 `json:"next_seq,omitempty"`
}

// NewSnapshot は空のワークショップ状態を生成する。
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Participants: []Participant{},
		Attendance:   map[string][]string{},
		NextSeq:      1,
	}
}

// Clone はスナップショットの深いコピーを返す。
// 変更の適用先をコピーに限定し、永続化成功後にのみ差し替えるために使用する。
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Participants: make([]Participant, len(s.Participants)),
		Attendance:   make(map[string][]string, len(s.Attendance)),
		NextSeq:      s.NextSeq,
	}
	copy(c.Participants, s.Participants)
	for id, sessions := range s.Attendance {
		c.Attendance[id] = append([]string{}, sessions...)
	}
	return c
}

// Normalize はロード・インポート直後のスナップショットを正規化する。
// nilコンテナを空の形に補い、カウンター未設定（または既存IDと矛盾する）
// 場合は既存IDの最大連番+1を導出する。
func (s *Snapshot) Normalize() {
	if s.Participants == nil {
		s.Participants = []Participant{}
	}
	if s.Attendance == nil {
		s.Attendance = map[string][]string{}
	}
	if derived := s.deriveNextSeq(); s.NextSeq < derived {
		s.NextSeq = derived
	}
}

// deriveNextSeq は既存参加者IDの数値接尾辞から次の連番を導出する。
func (s *Snapshot) deriveNextSeq() int {
	next := 1
	for _, p := range s.Participants {
		suffix := strings.TrimPrefix(p.ID, IDPrefix)
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next
}

// FindParticipant はID完全一致で参加者を検索する。見つからない場合はnilを返す。
func (s *Snapshot) FindParticipant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// FormatID は連番から参加者IDを生成する（例: BINDS-01）。
func FormatID(seq int) string {
	return fmt.Sprintf("%s%02d", IDPrefix, seq)
}

// MarkResult は出欠マーク操作の結果を表す。
type MarkResult string

const (
	// MarkResultMarked は新規にマークされたことを示す。
	MarkResultMarked MarkResult = "marked"
	// MarkResultAlreadyMarked は同一セッションが既にマーク済みで変更がないことを示す。
	MarkResultAlreadyMarked MarkResult = "already_marked"
	// MarkResultParticipantNotFound は参加者が存在しないことを示す。
	MarkResultParticipantNotFound MarkResult = "participant_not_found"
	// MarkResultNoSessionSelected はセッションが未選択であることを示す。
	MarkResultNoSessionSelected MarkResult = "no_session_selected"
)

// SheetRow は出欠シートの1行（参加者1人分）を表す。
// AttendedはSessionsと同じ順序の出席フラグ。
type SheetRow struct {
	ParticipantID string
	Name          string
	Email         string
	Institute     string
	Attended      []bool
	Total         int
}

// Sheet は固定6セッションに対する出欠グリッドを表す。
// 画面表示とCSVエクスポートは同一のSheetを消費するため、両者の数値は
// 構造上一致する。
type Sheet struct {
	Sessions      []string
	Rows          []SheetRow
	SessionTotals []int
}

// Stats はホーム画面向けの集計値を表す。
type Stats struct {
	TotalParticipants int            `json:"total_participants"`
	CheckedIn         int            `json:"checked_in"`
	SessionCounts     map[string]int `json:"session_counts"`
}

// Backup はエクスポート/インポート用のバックアップファイル形式を表す。
type Backup struct {
	ExportDate   string              `json:"exportDate"`
	WorkshopName string              `json:"workshopName"`
	Participants []Participant       `json:"participants"`
	Attendance   map[string][]string `json:"attendance"`
}
