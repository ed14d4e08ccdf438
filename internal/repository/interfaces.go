// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import "context"

// SnapshotRepository はワークショップ状態スナップショットの永続化を抽象化する。
// 状態全体が固定キー配下の1つのblobとして保存される。
type SnapshotRepository interface {
	// Load は指定キーのスナップショットを取得する。
	// キーが存在しない場合は found=false を返し、エラーにはしない。
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	// Save は指定キーのスナップショットを保存する。
	// 既存行の上書きは単一のUPSERTで行われ、途中状態が残ることはない。
	Save(ctx context.Context, key string, data []byte) error
}
