package config

const (
	DefaultTimeZone = "Asia/Seoul"

	// Schedules for the nightly rule passes.
	DefaultClassifySchedule = "0 19 * * *"
	DefaultTransferSchedule = "30 19 * * *"

	// Batch size for paging transactions through a rule pass.
	ClassifyBatchSize = 500
)
