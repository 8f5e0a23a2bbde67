// Package workers implements the background job processors consumed from
// the evaluation queue.
package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
	"github.com/nexocrm/crm-ai-gateway/internal/queue"
	"github.com/nexocrm/crm-ai-gateway/internal/services/ai"
)

// LeadScorer is the part of the pipeline the worker needs: score a lead and
// persist the result.
type LeadScorer interface {
	Evaluate(ctx context.Context, leadID int64) (*models.Evaluation, error)
}

// EvaluationWorker processes lead evaluation jobs. Failures retry with
// backoff; quota and rate-limit errors are re-enqueued through the delayed
// exchange instead of hammering the provider.
type EvaluationWorker struct {
	scorer   LeadScorer
	jobQueue queue.JobQueue
	logger   *zap.Logger
}

// NewEvaluationWorker creates an evaluation worker.
func NewEvaluationWorker(scorer LeadScorer, jobQueue queue.JobQueue, logger *zap.Logger) *EvaluationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationWorker{
		scorer:   scorer,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessJob routes one delivered message by job type and acknowledges it.
func (w *EvaluationWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		w.logger.Info("job not ready yet, returning to queue",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_before", job.NotBefore))
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Error("failed to nack early job", zap.Error(nackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeLeadEvaluation, queue.JobTypeLeadReprocess:
		if _, err := w.scorer.Evaluate(ctx, job.LeadID); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		w.logger.Info("lead evaluation completed",
			zap.String("job_id", job.ID.String()),
			zap.Int64("lead_id", job.LeadID))
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		// Unknown job type goes to the DLQ.
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("failed to nack unknown job type", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError applies retry policy to a failed job. Quota and rate-limit
// errors re-enqueue with a delay; other errors retry immediately until the
// retry budget runs out, then dead-letter.
func (w *EvaluationWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if ai.IsQuotaError(err) || ai.IsRateLimitError(err) {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		if job.CanRetry() && w.jobQueue != nil {
			delayed := *job
			delayed.NotBefore = &notBefore
			delayed.RetryCount = job.RetryCount + 1

			if ackErr := msg.Ack(); ackErr != nil {
				w.logger.Error("failed to ack job before re-enqueue", zap.Error(ackErr))
			}

			if enqueueErr := w.jobQueue.Enqueue(ctx, &delayed); enqueueErr != nil {
				return fmt.Errorf("provider throttled, failed to re-enqueue: %w", enqueueErr)
			}

			w.logger.Warn("provider throttled, job re-enqueued with delay",
				zap.String("job_id", job.ID.String()),
				zap.Duration("delay", retryDelay),
				zap.Error(err))
			return nil
		}

		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("failed to nack throttled job", zap.Error(nackErr))
		}
		return fmt.Errorf("provider throttled (job %s): %w", job.ID, err)
	}

	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("evaluation job failed, will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err))
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Error("failed to nack job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	w.logger.Error("evaluation job exhausted retries, dead-lettering",
		zap.String("job_id", job.ID.String()),
		zap.Error(err))
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Error("failed to nack job to DLQ", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// Run consumes from the queue until the context is cancelled.
func (w *EvaluationWorker) Run(ctx context.Context, prefetch int) error {
	msgs, errs, err := w.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case consumeErr, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Error("queue consumer error", zap.Error(consumeErr))
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if procErr := w.ProcessJob(ctx, msg); procErr != nil {
				w.logger.Warn("job processing ended with error", zap.Error(procErr))
			}
		}
	}
}
