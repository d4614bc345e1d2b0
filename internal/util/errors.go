package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
	ErrPermissionDenied   = errors.New("permission denied")

	ErrTraineeNotFound   = errors.New("trainee not found")
	ErrNotATrainee       = errors.New("selected user is not a trainee")
	ErrTrainerNotFound   = errors.New("trainer not found")
	ErrPlanFieldsMissing = errors.New("plan name, trainee, and at least one module are required")
	ErrPlanModuleInvalid = errors.New("each module must have a name, start date, and end date")
	ErrPlanModuleDates   = errors.New("end date must be after start date for each module")

	ErrCourseNotFound   = errors.New("course not found")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrNoKnowledgeCheck = errors.New("no knowledge check found for this course")
	ErrCMSUnavailable   = errors.New("content service unavailable")

	// ErrProgressConflict 乐观锁重试耗尽，客户端可重试
	ErrProgressConflict = errors.New("progress was updated concurrently, please retry")
)
