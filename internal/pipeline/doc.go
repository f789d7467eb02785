// Package pipeline orchestrates concurrent frame production.
//
// A bounded pool of reusable canvas-sized frame buffers provides backpressure:
// workers block in Acquire when every buffer is in flight, and buffers return
// to the pool only after the consumer has taken the frame. The scheduler fans
// frame indices out to a fixed worker set, reorders completed frames by index,
// and delivers them to the consumer in strictly increasing order with no gaps
// and no duplicates. Per-frame deadlines bound how long one slow frame can
// stall a job; a frame is retried a fixed number of times before the job
// fails.
package pipeline
