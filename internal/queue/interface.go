package queue

import (
	"context"
)

// MessageInterface is a delivered job plus its acknowledgement handle.
// Mock implementations back the worker tests.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for job queues.
type JobQueue interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a channel of messages from the queue. Messages arrive
	// asynchronously; the caller must ack or nack each one. Prefetch bounds
	// how many unacknowledged messages this consumer holds. The returned
	// channels close when the context is cancelled or the connection drops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection.
	Close() error

	// HealthCheck verifies the queue connection is healthy.
	HealthCheck(ctx context.Context) error
}
