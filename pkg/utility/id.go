package utility

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type TraceID = uint64
type ExecutionID = uuid.UUID
type ReportID = uuid.UUID

const (
	machineBits  = 10
	sequenceBits = 13

	maxSequence = 1<<sequenceBits - 1
	maxMachine  = 1<<machineBits - 1

	timestampShift = machineBits + sequenceBits
	machineShift   = sequenceBits
)

var (
	sequence  atomic.Uint64
	machineID = uint64(uuid.New().ID()) & maxMachine
	epoch     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	executionID     ExecutionID
	executionIDOnce sync.Once
)

// CreateTraceID returns a time ordered id: 41 bits of milliseconds since 2024, 10 bits of
// machine and 13 bits of sequence.
func CreateTraceID() TraceID {
	timestamp := uint64(time.Now().UnixMilli() - epoch) // #nosec G115
	seq := sequence.Add(1) & maxSequence

	if seq == 0 {
		time.Sleep(time.Millisecond)
		timestamp = uint64(time.Now().UnixMilli() - epoch) // #nosec G115
	}

	return (timestamp << timestampShift) | (machineID << machineShift) | seq
}

func ParseTraceID(id TraceID) (timestamp time.Time, machine uint64, seq uint64) {
	seq = id & maxSequence
	machine = (id >> machineShift) & maxMachine
	timestamp = time.UnixMilli(epoch + int64(id>>timestampShift)) // #nosec G115
	return
}

// GetExecutionID is stable for the lifetime of the process.
func GetExecutionID() ExecutionID {
	executionIDOnce.Do(func() {
		executionID = uuid.Must(uuid.NewV7())
	})
	return executionID
}

func NewReportID() ReportID {
	return uuid.Must(uuid.NewV7())
}
