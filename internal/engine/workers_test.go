package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

func newTestPool(t *testing.T) *WorkerPool {
	t.Helper()
	cfg := testConfig()
	eng := NewEngine(cfg, zap.NewNop())
	pool := NewWorkerPool(cfg, eng, NewStateStore(), zap.NewNop())
	t.Cleanup(pool.Stop)
	return pool
}

func TestWorkerPool_Process(t *testing.T) {
	pool := newTestPool(t)
	now := time.Now()

	result, err := pool.Process(context.Background(),
		reading("patient-1", now.Add(-time.Minute), 75, 16), now)

	require.NoError(t, err)
	assert.Equal(t, "patient-1", result.PatientID)
	assert.Equal(t, models.RiskLow, result.Risk.Level)
}

func TestWorkerPool_StaleReadingRejected(t *testing.T) {
	pool := newTestPool(t)
	now := time.Now()
	ts := now.Add(-time.Minute)

	_, err := pool.Process(context.Background(), reading("patient-1", ts, 75, 16), now)
	require.NoError(t, err)

	_, err = pool.Process(context.Background(), reading("patient-1", ts, 80, 18), now)
	assert.ErrorIs(t, err, ErrStaleReading)
}

// 同一病人并发投递：worker 串行处理，最终窗口条数等于
// 被接受的读数条数，无竞态丢失
func TestWorkerPool_SerializesPerPatient(t *testing.T) {
	pool := newTestPool(t)
	now := time.Now()
	base := now.Add(-40 * time.Minute)

	const total = 30
	var wg sync.WaitGroup
	accepted := make(chan struct{}, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := pool.Process(context.Background(),
				reading("patient-1", base.Add(time.Duration(i)*time.Minute), 75, 16), now)
			if err == nil {
				accepted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	// 并发到达导致乱序的读数被拒绝，但接受数和窗口条数必须一致
	count := 0
	for range accepted {
		count++
	}
	assert.Greater(t, count, 0)

	_, err := pool.Process(context.Background(),
		reading("patient-1", base.Add(time.Duration(total)*time.Minute), 75, 16), now)
	require.NoError(t, err)
	assert.Equal(t, count+1, len(pool.store.Get("patient-1").Snapshot()))
}

func TestWorkerPool_MultiplePatients(t *testing.T) {
	pool := newTestPool(t)
	now := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_, errs[i] = pool.Process(context.Background(),
				reading("patient-"+id, now.Add(-time.Minute), 75, 16), now)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "patient %d", i)
	}
	assert.Len(t, pool.store.Patients(), 8)
}

func TestWorkerPool_StopRejectsNewWork(t *testing.T) {
	cfg := testConfig()
	eng := NewEngine(cfg, zap.NewNop())
	pool := NewWorkerPool(cfg, eng, NewStateStore(), zap.NewNop())
	now := time.Now()

	_, err := pool.Process(context.Background(), reading("patient-1", now.Add(-time.Minute), 75, 16), now)
	require.NoError(t, err)

	pool.Stop()

	_, err = pool.Process(context.Background(), reading("patient-1", now, 76, 16), now)
	assert.ErrorIs(t, err, ErrPoolStopped)

	// 重复 Stop 安全
	pool.Stop()
}

// Stop 与在途提交交错：提交已通过 stopped 检查但尚未发送时，
// Stop 必须等提交完成再关通道，发送不得 panic
func TestWorkerPool_StopWaitsForInflightSubmission(t *testing.T) {
	cfg := testConfig()
	eng := NewEngine(cfg, zap.NewNop())
	pool := NewWorkerPool(cfg, eng, NewStateStore(), zap.NewNop())
	now := time.Now()

	// 在途提交：已取得 worker，还没往任务通道发送
	worker, err := pool.workerFor("patient-1")
	require.NoError(t, err)

	stopDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopDone)
	}()

	// Stop 此时必须阻塞等待在途提交
	select {
	case <-stopDone:
		t.Fatal("Stop returned while a submission was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	j := job{reading: reading("patient-1", now.Add(-time.Minute), 75, 16), now: now, reply: make(chan jobResult, 1)}
	require.NotPanics(t, func() { worker.jobs <- j })
	res := <-j.reply
	require.NoError(t, res.err)
	pool.senders.Done()

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after submissions drained")
	}

	_, err = pool.Process(context.Background(), reading("patient-1", now, 76, 16), now)
	assert.ErrorIs(t, err, ErrPoolStopped)
}

// Process 与 Stop 并发压测：每次要么正常返回要么 ErrPoolStopped，
// 进程不得崩溃
func TestWorkerPool_ProcessStopRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		cfg := testConfig()
		eng := NewEngine(cfg, zap.NewNop())
		pool := NewWorkerPool(cfg, eng, NewStateStore(), zap.NewNop())
		now := time.Now()

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				id := string(rune('a' + g))
				for n := 0; n < 5; n++ {
					_, err := pool.Process(context.Background(),
						reading("patient-"+id, now.Add(time.Duration(n)*time.Second), 75, 16), now)
					if err != nil {
						assert.ErrorIs(t, err, ErrPoolStopped)
						return
					}
				}
			}(g)
		}
		pool.Stop()
		wg.Wait()
	}
}
