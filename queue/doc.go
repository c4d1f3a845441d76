// Package queue is the in-process work queue between submission and the
// worker pool.
//
// Submission is two-phase so that a rejected job never leaves a record
// behind: the engine first calls [Queue.Reserve], which applies capacity
// and rate limits, then creates the PENDING record, then hands it over with
// [Reservation.Commit]. If record creation fails the slot is returned with
// [Reservation.Cancel].
//
//	q := queue.New(
//	    queue.WithCapacity(1000),      // reject beyond 1000 waiting jobs
//	    queue.WithRateLimit(50, 100),  // 50 submissions/s, bursts of 100
//	)
//
// Rate limiting uses a token bucket (golang.org/x/time/rate). A queue
// without options is unbounded and unthrottled.
//
// Workers call [Queue.Pop]. Each committed record is returned by exactly
// one Pop, so a job can never run on two workers at once.
package queue
