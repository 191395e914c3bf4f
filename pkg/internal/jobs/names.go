package jobs

// 任务名称常量.
const (
	JobSweepExpired = "records.sweep_expired"
)
