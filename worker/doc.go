// Package worker provides the job execution machinery: an Executor that
// moves one record through PROGRESS to a terminal state around the task
// handler and its middleware, and a Pool of K goroutines that pull records
// from the queue and hand them to the Executor.
//
// At most K tasks run at once. Each running task gets its own cancellable
// context so a single job can be cancelled, and Stop drains the queue
// before cancelling whatever is left.
package worker
