package application

import (
	"context"
	"fmt"
	"sync"

	"imaginebot/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Job は、キューで1件ずつ実行される生成ジョブです
type Job struct {
	ID string
	// Execute はワーカーで実行されます。戻るまで次のジョブは開始されません
	Execute func(ctx context.Context)
	// Abort は、実行されずに破棄されるジョブに対して呼ばれます
	Abort func(err error)
}

// GenerationQueue は、ワーカー1つで処理する有界FIFOキューです
// 容量は待機数 depth と実行中の1件の合計で、Reserve の時点で枠を確保します
type GenerationQueue struct {
	slots    *semaphore.Weighted
	capacity int64
	jobs     chan Job
	logger   *zap.Logger
	metrics  Metrics

	mu       sync.Mutex
	pending  int
	closed   bool
	aborting bool
	done     chan struct{}
}

// Ticket は、キューの枠1つ分の予約です
// Submit か Release のどちらかを必ず1回呼ぶ必要があります
type Ticket struct {
	queue *GenerationQueue
	once  sync.Once
}

// NewGenerationQueue は新しいGenerationQueueインスタンスを作成します
func NewGenerationQueue(depth int, logger *zap.Logger, metrics Metrics) *GenerationQueue {
	if depth < 0 {
		depth = 0
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	capacity := int64(depth) + 1
	return &GenerationQueue{
		slots:    semaphore.NewWeighted(capacity),
		capacity: capacity,
		jobs:     make(chan Job, capacity),
		logger:   logger,
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Capacity は、同時に受け付けられるリクエスト数（待機 + 実行中）を返します
func (q *GenerationQueue) Capacity() int {
	return int(q.capacity)
}

// Reserve は、キューの枠を1つ確保します
// 満杯の場合は domain.ErrQueueFull、停止後は domain.ErrQueueClosed を返します
func (q *GenerationQueue) Reserve() (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, domain.ErrQueueClosed
	}
	if !q.slots.TryAcquire(1) {
		return nil, domain.ErrQueueFull
	}

	q.pending++
	q.metrics.SetQueueDepth(q.pending)
	return &Ticket{queue: q}, nil
}

// Submit は、予約済みの枠にジョブを投入します。ブロックしません
func (t *Ticket) Submit(job Job) error {
	err := domain.ErrQueueClosed
	t.once.Do(func() {
		err = t.queue.enqueue(job)
	})
	return err
}

// Release は、ジョブを投入せずに枠を返却します
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.queue.releaseSlot()
	})
}

func (q *GenerationQueue) enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.releaseSlotLocked()
		return domain.ErrQueueClosed
	}

	// 枠の数とチャネルの容量は一致しているため、ここでブロックすることはない
	q.jobs <- job
	q.logger.Debug("ジョブをキューに追加しました",
		zap.String("job_id", job.ID),
		zap.Int("queued", len(q.jobs)))
	return nil
}

func (q *GenerationQueue) releaseSlot() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseSlotLocked()
}

func (q *GenerationQueue) releaseSlotLocked() {
	q.pending--
	q.slots.Release(1)
	q.metrics.SetQueueDepth(q.pending)
}

// Run は、ctx がキャンセルされるか Close が呼ばれるまでジョブを1件ずつ実行します
// 実行中のジョブが終わってから戻り、未着手のジョブは中断として通知されます
func (q *GenerationQueue) Run(ctx context.Context) error {
	defer close(q.done)
	defer q.drain()

	q.logger.Info("生成ワーカーを開始しました", zap.Int64("capacity", q.capacity))

	for {
		// キャンセル済みの場合は、待機中のジョブがあっても新たに開始しない
		if ctx.Err() != nil {
			q.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			q.Close()
			return nil
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				q.abort(job, domain.ErrQueueClosed)
				q.Close()
				return nil
			}
			if q.isAborting() {
				q.abort(job, domain.ErrQueueClosed)
				continue
			}
			q.execute(ctx, job)
		}
	}
}

// execute は、ジョブを1件実行します。ジョブ内の panic はワーカーを止めません
func (q *GenerationQueue) execute(ctx context.Context, job Job) {
	defer q.releaseSlot()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("ジョブの実行中に panic が発生しました",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
			if job.Abort != nil {
				job.Abort(fmt.Errorf("ジョブの実行中に panic が発生しました: %v", r))
			}
		}
	}()

	q.logger.Debug("ジョブを開始します", zap.String("job_id", job.ID))
	job.Execute(ctx)
}

// Close は、新しいジョブの受け付けを停止します。複数回呼んでも安全です
func (q *GenerationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
	q.logger.Info("生成キューの受け付けを停止しました")
}

// Shutdown は、受け付けを停止して実行中のジョブの完了を待ちます
// 未着手のジョブは実行されずに中断として通知されます
// ctx が先に終了した場合は ctx.Err() を返し、実行中のジョブはそのまま残ります
func (q *GenerationQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.aborting = true
	q.mu.Unlock()
	q.Close()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *GenerationQueue) isAborting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborting
}

// Done は、Run が終了したときに閉じられるチャネルを返します
func (q *GenerationQueue) Done() <-chan struct{} {
	return q.done
}

// drain は、実行されなかったジョブに停止を通知します
func (q *GenerationQueue) drain() {
	for job := range q.jobs {
		q.abort(job, domain.ErrQueueClosed)
	}
}

func (q *GenerationQueue) abort(job Job, err error) {
	defer q.releaseSlot()
	q.logger.Warn("停止のためジョブを中断します", zap.String("job_id", job.ID))
	if job.Abort != nil {
		job.Abort(err)
	}
}
