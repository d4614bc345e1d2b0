package model

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

type ProgressState string

const (
	ProgressNotStarted ProgressState = "not_started"
	ProgressInProgress ProgressState = "in_progress"
	ProgressCompleted  ProgressState = "completed"
)

// CourseProgress 每个 (userId, courseUid) 唯一一条记录
// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID           string                      `gorm:"size:64;not null;uniqueIndex:idx_progress_user_course,priority:1" json:"userId"`
	CourseID         string                      `gorm:"size:64;index;not null" json:"courseId"`
	CourseUID        string                      `gorm:"size:64;not null;uniqueIndex:idx_progress_user_course,priority:2" json:"courseUid"`
	CompletedModules datatypes.JSONSlice[string] `json:"completedModules"`
	CurrentModule    *string                     `gorm:"size:64" json:"currentModule"`
	Progress         int                         `gorm:"not null;default:0" json:"progress"`
	StartedAt        *time.Time                  `json:"startedAt"`
	LastAccessedAt   *time.Time                  `json:"lastAccessedAt"`
	CompletedAt      *time.Time                  `json:"completedAt,omitempty"`
	Version          int                         `gorm:"not null;default:1" json:"-"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// NewCourseProgress 未开始状态，读取无记录时也返回该零值
func NewCourseProgress(userID, courseUID string) *CourseProgress {
	return &CourseProgress{
		UserID:           userID,
		CourseID:         courseUID,
		CourseUID:        courseUID,
		CompletedModules: datatypes.JSONSlice[string]{},
	}
}

// Percentage returns round(completed/total*100) clamped to [0,100]; 0 when total <= 0.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}

func (p *CourseProgress) HasCompleted(moduleUID string) bool {
	for _, uid := range p.CompletedModules {
		if uid == moduleUID {
			return true
		}
	}
	return false
}

// CompleteModule 标记模块完成（幂等）并按当前模块总数重新计算进度
func (p *CourseProgress) CompleteModule(moduleUID string, totalModules int, now time.Time) {
	if p.CompletedModules == nil {
		p.CompletedModules = datatypes.JSONSlice[string]{}
	}
	if !p.HasCompleted(moduleUID) {
		p.CompletedModules = append(p.CompletedModules, moduleUID)
	}
	current := moduleUID
	p.CurrentModule = &current
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.LastAccessedAt = &now
	p.Recompute(totalModules, now)
}

// Recompute derives the percentage from the caller-supplied module total. A course
// whose module list grew after completion falls back to in progress.
func (p *CourseProgress) Recompute(totalModules int, now time.Time) {
	completed := len(p.CompletedModules)
	p.Progress = Percentage(completed, totalModules)

	if totalModules > 0 && completed >= totalModules {
		p.Progress = 100
		if p.CompletedAt == nil {
			p.CompletedAt = &now
		}
		return
	}
	p.CompletedAt = nil
}

func (p *CourseProgress) State() ProgressState {
	switch {
	case len(p.CompletedModules) == 0:
		return ProgressNotStarted
	case p.CompletedAt != nil:
		return ProgressCompleted
	default:
		return ProgressInProgress
	}
}
