package models

import "time"

// ExecutionStatus is the state of a flow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess   ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// ExecutionStatuses lists every execution status.
var ExecutionStatuses = []ExecutionStatus{
	ExecutionStatusRunning,
	ExecutionStatusSuccess,
	ExecutionStatusFailed,
	ExecutionStatusCancelled,
}

// LogStatus is the outcome of a single node visit.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
	LogStatusSkipped LogStatus = "skipped"
)

// ExecutionLogEntry records one node visit. Entries are appended in visitation order.
type ExecutionLogEntry struct {
	NodeID     string         `json:"nodeId"`
	NodeType   NodeType       `json:"nodeType"`
	Status     LogStatus      `json:"status"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs *int64         `json:"duration,omitempty"`
}

// FlowExecution is the record of one triggered run.
type FlowExecution struct {
	ID           string              `json:"id"`
	FlowID       string              `json:"flowId"`
	Status       ExecutionStatus     `json:"status"`
	TriggerType  string              `json:"triggerType"`
	TriggerData  map[string]any      `json:"triggerData,omitempty"`
	ExecutionLog []ExecutionLogEntry `json:"executionLog"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
	DurationMs   *int64              `json:"durationMs,omitempty"`
}

// IsCompleted reports whether the run has finished; completed runs are immutable.
func (e *FlowExecution) IsCompleted() bool {
	return e.CompletedAt != nil
}

// Append adds a log entry at the end of the execution log.
func (e *FlowExecution) Append(entry ExecutionLogEntry) {
	e.ExecutionLog = append(e.ExecutionLog, entry)
}

// Complete moves the run to a terminal status and stamps completion time and duration.
func (e *FlowExecution) Complete(status ExecutionStatus, errMsg string, now time.Time) {
	duration := now.Sub(e.StartedAt).Milliseconds()

	e.Status = status
	e.Error = errMsg
	e.CompletedAt = &now
	e.DurationMs = &duration
}

// ExecutionStats aggregates the runs of one flow.
type ExecutionStats struct {
	FlowID            string                  `json:"flowId"`
	Total             int                     `json:"total"`
	ByStatus          map[ExecutionStatus]int `json:"byStatus"`
	ByTriggerType     map[string]int          `json:"byTriggerType"`
	AverageDurationMs *float64                `json:"averageDurationMs,omitempty"`
	LastExecution     *FlowExecution          `json:"lastExecution,omitempty"`
}

// NewExecutionStats returns empty stats for flowID with initialised maps.
func NewExecutionStats(flowID string) *ExecutionStats {
	return &ExecutionStats{
		FlowID:        flowID,
		ByStatus:      map[ExecutionStatus]int{},
		ByTriggerType: map[string]int{},
	}
}
