package repository

import (
	"techacademy_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type TrainingPlanRepository struct {
	DB *gorm.DB
}

func NewTrainingPlanRepository(db *gorm.DB) *TrainingPlanRepository {
	return &TrainingPlanRepository{DB: db}
}

func orderedModules(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create 计划与模块在同一事务中写入
func (r *TrainingPlanRepository) Create(plan *model.TrainingPlan) error {
	plan.Version = 1
	for i := range plan.Modules {
		plan.Modules[i].Position = i
	}
	return r.DB.Create(plan).Error
}

func (r *TrainingPlanRepository) FindByID(id uint) (*model.TrainingPlan, error) {
	var plan model.TrainingPlan
	err := r.DB.Preload("Modules", orderedModules).First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *TrainingPlanRepository) List() ([]model.TrainingPlan, error) {
	var plans []model.TrainingPlan
	err := r.DB.Preload("Modules", orderedModules).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, err
}

func (r *TrainingPlanRepository) FindByTrainee(traineeID string) ([]model.TrainingPlan, error) {
	var plans []model.TrainingPlan
	err := r.DB.Preload("Modules", orderedModules).
		Where("trainee_id = ?", traineeID).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, err
}

// FindByTraineeAndModule 学员名下包含该模块的全部计划
func (r *TrainingPlanRepository) FindByTraineeAndModule(traineeID, moduleUID string) ([]model.TrainingPlan, error) {
	var plans []model.TrainingPlan
	sub := r.DB.Model(&model.TrainingPlanModule{}).
		Select("plan_ref_id").
		Where("module_uid = ?", moduleUID)
	err := r.DB.Preload("Modules", orderedModules).
		Where("trainee_id = ? AND id IN (?)", traineeID, sub).
		Order("id ASC").
		Find(&plans).Error
	return plans, err
}

// SaveStatuses 以版本号为条件更新计划状态及其模块状态，整体在一个事务内完成
func (r *TrainingPlanRepository) SaveStatuses(plan *model.TrainingPlan) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TrainingPlan{}).
			Where("id = ? AND version = ?", plan.ID, plan.Version).
			Updates(map[string]interface{}{
				"status":     plan.Status,
				"version":    plan.Version + 1,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for _, m := range plan.Modules {
			if err := tx.Model(&model.TrainingPlanModule{}).
				Where("id = ?", m.ID).
				Update("status", m.Status).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	plan.Version++
	return nil
}
