package models

import "time"

// Built-in scheduled report task types. Named reports use their own
// task_type key with a custom interval.
const (
	ReportTaskDaily   = "daily"
	ReportTaskWeekly  = "weekly"
	ReportTaskMonthly = "monthly"
)

// Periods for the built-in task types, in seconds.
const (
	ReportPeriodDaily   = 86400
	ReportPeriodWeekly  = 604800
	ReportPeriodMonthly = 2592000
)

// ReportTask is one row of the report_schedule table. LastRun is nil for a
// task that has never run, which makes it immediately due.
type ReportTask struct {
	TaskType        string
	IntervalSeconds int64
	Recipient       *string // optional delivery address for the artifact
	LastRun         *time.Time
	CreatedAt       time.Time
}

// Period returns the task's interval as a duration.
func (t *ReportTask) Period() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// ReportArtifact is the output of a report generation run.
type ReportArtifact struct {
	ID          string
	TaskType    string
	ContentType string
	Body        []byte
	GeneratedAt time.Time
}
