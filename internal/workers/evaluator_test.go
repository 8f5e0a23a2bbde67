package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
)

type fakeScorer struct {
	err   error
	calls []int64
}

func (f *fakeScorer) Evaluate(_ context.Context, leadID int64) (*models.Evaluation, error) {
	f.calls = append(f.calls, leadID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Evaluation{LeadID: leadID}, nil
}

type fakeMessage struct {
	job      *queue.Job
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeMessage) Ack() error { f.acked = true; return nil }

func (f *fakeMessage) Nack(requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeMessage) GetJob() *queue.Job { return f.job }

type fakeJobQueue struct {
	enqueued []*queue.Job
}

func (f *fakeJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeJobQueue) Consume(_ context.Context, _ int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeJobQueue) Close() error { return nil }

func (f *fakeJobQueue) HealthCheck(_ context.Context) error { return nil }

func TestProcessJobAcksOnSuccess(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeLeadEvaluation, 42)}

	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("successful job not acked")
	}
	if len(scorer.calls) != 1 || scorer.calls[0] != 42 {
		t.Errorf("scorer calls = %v, want [42]", scorer.calls)
	}
}

func TestProcessJobReprocessType(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeLeadReprocess, 7)}

	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("reprocess job not acked")
	}
}

func TestProcessJobRetriesOnFailure(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{err: errors.New("db unavailable")}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeLeadEvaluation, 1)}

	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("ProcessJob() error = nil, want retry error")
	}
	if !msg.nacked || !msg.requeued {
		t.Errorf("failed job: nacked=%v requeued=%v, want nack with requeue", msg.nacked, msg.requeued)
	}
	if msg.job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", msg.job.RetryCount)
	}
}

func TestProcessJobDeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{err: errors.New("db unavailable")}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	job := queue.NewJob(queue.JobTypeLeadEvaluation, 1)
	job.RetryCount = job.MaxRetries
	msg := &fakeMessage{job: job}

	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("ProcessJob() error = nil, want max-retries error")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("exhausted job: nacked=%v requeued=%v, want nack without requeue", msg.nacked, msg.requeued)
	}
}

func TestProcessJobThrottledReEnqueuesWithDelay(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{err: &ai.APIError{StatusCode: 429, Type: "rate_limit_error", Message: "slow down"}}
	jobQueue := &fakeJobQueue{}
	worker := NewEvaluationWorker(scorer, jobQueue, nil)
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeLeadEvaluation, 5)}

	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v, want delayed re-enqueue", err)
	}
	if !msg.acked {
		t.Error("throttled job not acked before re-enqueue")
	}
	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("enqueued = %d jobs, want 1", len(jobQueue.enqueued))
	}
	delayed := jobQueue.enqueued[0]
	if delayed.NotBefore == nil || !delayed.NotBefore.After(time.Now()) {
		t.Error("re-enqueued job missing future NotBefore")
	}
	if delayed.RetryCount != 1 {
		t.Errorf("re-enqueued RetryCount = %d, want 1", delayed.RetryCount)
	}
	if delayed.ID != msg.job.ID {
		t.Error("re-enqueued job lost its identity")
	}
}

func TestProcessJobQuotaExhaustedDeadLettersWhenOutOfRetries(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{err: &ai.APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true}}
	jobQueue := &fakeJobQueue{}
	worker := NewEvaluationWorker(scorer, jobQueue, nil)
	job := queue.NewJob(queue.JobTypeLeadEvaluation, 5)
	job.RetryCount = job.MaxRetries
	msg := &fakeMessage{job: job}

	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("ProcessJob() error = nil, want throttled error")
	}
	if len(jobQueue.enqueued) != 0 {
		t.Error("exhausted job was re-enqueued")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("exhausted job: nacked=%v requeued=%v, want DLQ nack", msg.nacked, msg.requeued)
	}
}

func TestProcessJobUnknownTypeDeadLetters(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	msg := &fakeMessage{job: queue.NewJob(queue.JobType("sync_calendar"), 1)}

	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("ProcessJob() error = nil, want unknown-type error")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("unknown job: nacked=%v requeued=%v, want DLQ nack", msg.nacked, msg.requeued)
	}
	if len(scorer.calls) != 0 {
		t.Error("unknown job type reached the scorer")
	}
}

func TestProcessJobNotReadyRequeues(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{}
	worker := NewEvaluationWorker(scorer, &fakeJobQueue{}, nil)
	job := queue.NewJob(queue.JobTypeLeadEvaluation, 1)
	future := time.Now().Add(time.Hour)
	job.NotBefore = &future
	msg := &fakeMessage{job: job}

	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.nacked || !msg.requeued {
		t.Errorf("early job: nacked=%v requeued=%v, want nack with requeue", msg.nacked, msg.requeued)
	}
	if len(scorer.calls) != 0 {
		t.Error("early job reached the scorer")
	}
}
