// Package scan はQRスキャンによる出欠記録の制御を提供する。
package scan

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// DecodeStream はQRデコード結果の供給源を抽象化する。
// Startはデコード済みペイロードのチャネルを返し、Stopで供給を打ち切る。
// 停止済みストリームへのStopは安全でなければならない。
type DecodeStream interface {
	Start() (<-chan string, error)
	Stop() error
}

// ReaderStream は行指向のio.ReaderをDecodeStreamに適合させる。
// キーボードウェッジ型やシリアル接続のQRスキャナーは読み取り結果を
// 1行ずつ出力するため、標準入力やシリアルポートをそのまま渡せる。
// Stop後に再度Startでき、停止時に未配送だった行は次のサイクルに繰り越される。
type ReaderStream struct {
	mu      sync.Mutex
	reader  io.Reader
	lines   chan string
	done    chan struct{}
	pump    sync.Once
	pending *string

	active  chan string
	stopCh  chan struct{}
	fwdDone chan struct{}
}

// NewReaderStream はReaderStreamを生成する。
func NewReaderStream(r io.Reader) *ReaderStream {
	return &ReaderStream{
		reader: r,
		lines:  make(chan string),
		done:   make(chan struct{}),
	}
}

// Start はペイロードチャネルを返す。既に開始済みの場合はエラーを返す。
func (s *ReaderStream) Start() (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, fmt.Errorf("stream already started")
	}

	// 行の読み取りはStart/Stopのサイクルをまたいで1本のゴルーチンが担う
	s.pump.Do(func() {
		go s.readLines()
	})

	out := make(chan string)
	stop := make(chan struct{})
	fwdDone := make(chan struct{})
	s.active = out
	s.stopCh = stop
	s.fwdDone = fwdDone
	go s.forward(out, stop, fwdDone)

	return out, nil
}

// Stop は現在のペイロードチャネルを閉じる。未開始・停止済みの場合は何もしない。
// 転送ゴルーチンの終了を待ってから返るため、Stopから戻った時点で
// 未配送の行は繰り越し済みである。
func (s *ReaderStream) Stop() error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	stop := s.stopCh
	fwdDone := s.fwdDone
	s.active = nil
	s.stopCh = nil
	s.fwdDone = nil
	s.mu.Unlock()

	close(stop)
	<-fwdDone
	return nil
}

// Done は元のReaderが尽きたときに閉じられるチャネルを返す。
// 呼び出し側はこれでスキャンループの終了を判断できる。
func (s *ReaderStream) Done() <-chan struct{} {
	return s.done
}

func (s *ReaderStream) readLines() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		s.lines <- scanner.Text()
	}
}

func (s *ReaderStream) forward(out chan string, stop, fwdDone chan struct{}) {
	defer close(fwdDone)
	defer close(out)
	for {
		line, ok := s.next(stop)
		if !ok {
			return
		}
		select {
		case out <- line:
		case <-stop:
			// 受け手に渡せなかった行は次のStartで配送する
			s.mu.Lock()
			s.pending = &line
			s.mu.Unlock()
			return
		}
	}
}

func (s *ReaderStream) next(stop chan struct{}) (string, bool) {
	s.mu.Lock()
	if s.pending != nil {
		line := *s.pending
		s.pending = nil
		s.mu.Unlock()
		return line, true
	}
	s.mu.Unlock()

	select {
	case <-stop:
		return "", false
	case line := <-s.lines:
		return line, true
	case <-s.done:
		return "", false
	}
}

// compile-time interface check
var _ DecodeStream = (*ReaderStream)(nil)
