package repository

import (
	"techacademy_backend/internal/model"

	"gorm.io/gorm"
)

type KnowledgeCheckRepository struct {
	DB *gorm.DB
}

func NewKnowledgeCheckRepository(db *gorm.DB) *KnowledgeCheckRepository {
	return &KnowledgeCheckRepository{DB: db}
}

func (r *KnowledgeCheckRepository) Create(submission *model.KnowledgeCheckSubmission) error {
	return r.DB.Create(submission).Error
}

func (r *KnowledgeCheckRepository) UpdateArchiveURL(id uint, url string) error {
	return r.DB.Model(&model.KnowledgeCheckSubmission{}).
		Where("id = ?", id).
		Update("archive_url", url).Error
}

func (r *KnowledgeCheckRepository) ListByUserAndCourse(userID, courseUID string) ([]model.KnowledgeCheckSubmission, error) {
	var list []model.KnowledgeCheckSubmission
	err := r.DB.Where("user_id = ? AND course_uid = ?", userID, courseUID).
		Order("submitted_at DESC").
		Find(&list).Error
	return list, err
}
