package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MinPasswordLength       = 8
	GeneratedPasswordLength = 12
	PlanIDPrefix            = "plan-"
	UserIDPrefix            = "user-"
)

const (
	MimeJSON = "application/json"
)
