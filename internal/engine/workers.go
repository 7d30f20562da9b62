package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
)

// ErrPoolStopped worker 池已停止，拒绝新任务
var ErrPoolStopped = errors.New("worker pool is stopped")

// job 一次分析任务，reply 恰好收到一个结果
type job struct {
	reading models.Reading
	now     time.Time
	reply   chan jobResult
}

type jobResult struct {
	result *models.AnalysisResult
	err    error
}

// patientWorker 单个病人的串行处理单元
type patientWorker struct {
	state *PatientState
	jobs  chan job
}

// WorkerPool 按病人分派的 worker 池
// 同一病人的读数由同一个 goroutine 串行处理，保证窗口更新
// 和分析不交错；跨病人并发由信号量限制，防止病人数暴涨时
// goroutine 同时占满 CPU
type WorkerPool struct {
	engine *Engine
	store  *StateStore
	logger *zap.Logger

	sem chan struct{}

	mu      sync.Mutex
	workers map[string]*patientWorker
	stopped bool

	// senders 在途的 Process 提交；Stop 必须等它们全部完成
	// 才能关闭任务通道，否则会向已关闭的通道发送
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

// NewWorkerPool 创建 worker 池
func NewWorkerPool(cfg *config.Config, engine *Engine, store *StateStore, logger *zap.Logger) *WorkerPool {
	maxConcurrent := cfg.Engine.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &WorkerPool{
		engine:  engine,
		store:   store,
		logger:  logger,
		sem:     make(chan struct{}, maxConcurrent),
		workers: make(map[string]*patientWorker),
	}
}

// Process 将读数交给该病人的 worker 并等待分析结果
// 乱序或重复读数返回 ErrStaleReading
func (p *WorkerPool) Process(ctx context.Context, reading models.Reading, now time.Time) (*models.AnalysisResult, error) {
	worker, err := p.workerFor(reading.PatientID)
	if err != nil {
		return nil, err
	}
	defer p.senders.Done()

	j := job{reading: reading, now: now, reply: make(chan jobResult, 1)}
	select {
	case worker.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-j.reply:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// workerFor 获取或启动病人 worker
func (p *WorkerPool) workerFor(patientID string) (*patientWorker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, ErrPoolStopped
	}
	// 和 stopped 检查在同一临界区内登记，Stop 置位后不会再有新的在途提交
	p.senders.Add(1)

	worker, ok := p.workers[patientID]
	if !ok {
		worker = &patientWorker{
			state: p.store.Get(patientID),
			jobs:  make(chan job, 16),
		}
		p.workers[patientID] = worker

		p.wg.Add(1)
		go p.run(worker)

		p.logger.Debug("Patient worker started",
			zap.String("patient_id", patientID),
		)
	}
	return worker, nil
}

// run worker 主循环：串行消费该病人的任务直到通道关闭
func (p *WorkerPool) run(worker *patientWorker) {
	defer p.wg.Done()

	for j := range worker.jobs {
		p.sem <- struct{}{}
		result, err := p.engine.Process(worker.state, j.reading, j.now)
		<-p.sem

		j.reply <- jobResult{result: result, err: err}
	}
}

// Stop 停止接收新任务，排空在途任务后返回
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	// 1. 等在途提交完成（worker 仍在消费，发送不会永久阻塞）
	p.senders.Wait()

	// 2. 再关闭任务通道，排空 worker
	p.mu.Lock()
	for _, worker := range p.workers {
		close(worker.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}
