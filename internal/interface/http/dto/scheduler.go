package dto

// StartSchedulerRequest 启动扫描请求
type StartSchedulerRequest struct {
	IntervalMinutes int `json:"interval_minutes" binding:"required,min=1,max=1440"`
}
