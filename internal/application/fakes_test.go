package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"imaginebot/internal/domain"
)

// fakeEngine は、呼び出しを記録するテスト用の画像生成エンジンです
type fakeEngine struct {
	mu       sync.Mutex
	requests []EngineRequest

	// failAt 番目（0始まり）の呼び出しで err を返します。-1 の場合は失敗しません
	failAt int
	err    error
	data   []byte
	delay  time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failAt: -1, data: []byte("\x89PNG fake")}
}

func (e *fakeEngine) GenerateImage(ctx context.Context, request EngineRequest) ([]byte, error) {
	current := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.maxInFlight.Load()
		if current <= peak || e.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	e.mu.Lock()
	index := len(e.requests)
	e.requests = append(e.requests, request)
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if index == e.failAt {
		return nil, e.err
	}
	return e.data, nil
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) Requests() []EngineRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]EngineRequest, len(e.requests))
	copy(result, e.requests)
	return result
}

// recordingResponder は、送信された応答を順に記録するテスト用の Responder です
type recordingResponder struct {
	mu       sync.Mutex
	events   []string
	contents []string
	images   []StoredImage

	deferErr   error
	succeedErr error
	failErr    error
}

func (r *recordingResponder) record(event, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if content != "" {
		r.contents = append(r.contents, content)
	}
}

func (r *recordingResponder) Defer(ctx context.Context) error {
	r.record("defer", "")
	return r.deferErr
}

func (r *recordingResponder) Reject(ctx context.Context, content string) error {
	r.record("reject", content)
	return nil
}

func (r *recordingResponder) Succeed(ctx context.Context, content string, images []StoredImage) error {
	r.record("succeed", content)
	r.mu.Lock()
	r.images = append(r.images, images...)
	r.mu.Unlock()
	return r.succeedErr
}

func (r *recordingResponder) Fail(ctx context.Context, content string) error {
	r.record("fail", content)
	return r.failErr
}

func (r *recordingResponder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingResponder) LastContent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.contents) == 0 {
		return ""
	}
	return r.contents[len(r.contents)-1]
}

// memoryStore は、ファイルを書かずに保存結果だけを返すテスト用の ImageStore です
type memoryStore struct {
	mu      sync.Mutex
	saved   map[string][]domain.GeneratedImage
	removed []StoredImage
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string][]domain.GeneratedImage)}
}

func (s *memoryStore) Save(ctx context.Context, requestID string, images []domain.GeneratedImage) ([]StoredImage, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[requestID] = images

	stored := make([]StoredImage, len(images))
	for i := range images {
		stored[i] = StoredImage{
			Name:        fmt.Sprintf("output_%d.png", i),
			Path:        fmt.Sprintf("/tmp/%s/output_%d.png", requestID, i),
			ContentType: "image/png",
		}
	}
	return stored, nil
}

func (s *memoryStore) Remove(images []StoredImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, images...)
	return nil
}

func (s *memoryStore) Removed() []StoredImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredImage(nil), s.removed...)
}

// recordingMetrics は、記録された結果を数えるテスト用の Metrics です
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	depths   []int
	calls    int
}

func (m *recordingMetrics) ObserveRequest(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ObserveEngineCall(string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *recordingMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}
