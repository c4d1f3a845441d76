package jobtrack

import "github.com/xraph/jobtrack/id"

// ID is the primary identifier type for jobtrack entities.
type ID = id.ID

// JobID identifies a submitted job.
type JobID = id.JobID
