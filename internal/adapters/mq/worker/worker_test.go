package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/healthreview/internal/adapters/mq/queue"
	"github.com/okian/healthreview/internal/adapters/mq/worker"
	"github.com/okian/healthreview/internal/domain/model"
	logging "github.com/okian/healthreview/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockWriter struct {
	mu      sync.Mutex
	reports map[string]model.WeeklyReport
	errs    map[string]error
	calls   int
}

func newMockWriter() *mockWriter {
	return &mockWriter{reports: make(map[string]model.WeeklyReport), errs: make(map[string]error)}
}

func (m *mockWriter) UpsertScore(_ context.Context, clientID string, week model.Week, metricID string, score model.Score) (model.WeeklyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[clientID]; ok {
		return model.WeeklyReport{}, err
	}
	r := m.reports[clientID]
	r.ClientID, r.Week = clientID, week
	r.SetScore(metricID, score)
	m.reports[clientID] = r
	return r.Clone(), nil
}

func (m *mockWriter) setError(clientID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[clientID] = err
}

func (m *mockWriter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func await(t *testing.T, j queue.Job) queue.Result {
	t.Helper()
	select {
	case r := <-j.Reply():
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job result")
		return queue.Result{}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init(logging.WithOutput(io.Discard))

		q := newMockQueue()
		writer := newMockWriter()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, writer,
				worker.WithName("test-worker"),
				worker.WithLogger(logging.Get()),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, writer)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And when a job is written", func() {
				j := queue.NewJob("c1", "2024-01-08", "m1", model.Amber, "")
				q.jobs <- j
				r := await(t, j)

				convey.Convey("Then the updated report is replied", func() {
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Report.ClientID, convey.ShouldEqual, "c1")
					convey.So(r.Report.StatusSummary.Amber, convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And when the write fails", func() {
				boom := errors.New("disk full")
				writer.setError("c2", boom)
				j := queue.NewJob("c2", "2024-01-08", "m1", model.Red, "")
				q.jobs <- j
				r := await(t, j)

				convey.Convey("Then the error is replied", func() {
					convey.So(errors.Is(r.Err, boom), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when shutting down", func() {
				err := w.Shutdown(context.Background())

				convey.Convey("Then it should shutdown gracefully and tolerate a second call", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, writer)
			_ = q.Close()
			go w.Run(context.Background())

			convey.Convey("Then the worker stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, writer)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over an in-memory queue", t, func() {
		_ = logging.Init(logging.WithOutput(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		writer := newMockWriter()

		convey.Convey("When created with a non-positive count", func() {
			p := worker.NewPool(0, q, writer)

			convey.Convey("Then it falls back to at least one worker", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When processing many concurrent jobs", func() {
			p := worker.NewPool(4, q, writer)
			p.Start(context.Background())

			var jobs []queue.Job
			for i := 0; i < 50; i++ {
				j := queue.NewJob(fmt.Sprintf("c%d", i), "2024-01-08", "m1", model.Green, "")
				convey.So(q.Enqueue(context.Background(), j), convey.ShouldBeTrue)
				jobs = append(jobs, j)
			}

			var failures int
			for _, j := range jobs {
				if r := await(t, j); r.Err != nil {
					failures++
				}
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then all jobs should be written", func() {
				convey.So(failures, convey.ShouldEqual, 0)
				convey.So(writer.callCount(), convey.ShouldEqual, 50)
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down with jobs still queued", func() {
			p := worker.NewPool(1, q, writer)
			var jobs []queue.Job
			for i := 0; i < 5; i++ {
				j := queue.NewJob(fmt.Sprintf("c%d", i), "2024-01-08", "m1", model.Red, "")
				q.Enqueue(context.Background(), j)
				jobs = append(jobs, j)
			}
			p.Start(context.Background())
			err := p.Shutdown(context.Background())

			convey.Convey("Then the queued jobs are drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, j := range jobs {
					convey.So(await(t, j).Err, convey.ShouldBeNil)
				}
			})
		})
	})
}
