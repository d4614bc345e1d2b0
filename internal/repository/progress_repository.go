package repository

import (
	"errors"
	"techacademy_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

// ErrVersionConflict 乐观锁版本不匹配
var ErrVersionConflict = errors.New("version conflict")

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) FindByUserAndCourse(userID, courseUID string) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Where("user_id = ? AND course_uid = ?", userID, courseUID).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Create 首次写入；(user_id, course_uid) 已存在时返回 gorm.ErrDuplicatedKey
func (r *ProgressRepository) Create(progress *model.CourseProgress) error {
	progress.Version = 1
	return r.DB.Create(progress).Error
}

// UpdateVersioned 仅当版本号未变化时写入，成功后版本号加一
func (r *ProgressRepository) UpdateVersioned(progress *model.CourseProgress) error {
	res := r.DB.Model(&model.CourseProgress{}).
		Where("id = ? AND version = ?", progress.ID, progress.Version).
		Updates(map[string]interface{}{
			"completed_modules": progress.CompletedModules,
			"current_module":    progress.CurrentModule,
			"progress":          progress.Progress,
			"started_at":        progress.StartedAt,
			"last_accessed_at":  progress.LastAccessedAt,
			"completed_at":      progress.CompletedAt,
			"version":           progress.Version + 1,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	progress.Version++
	return nil
}

// ListAll 按最近访问时间倒序
func (r *ProgressRepository) ListAll() ([]model.CourseProgress, error) {
	var list []model.CourseProgress
	err := r.DB.Order("last_accessed_at DESC").Find(&list).Error
	return list, err
}
