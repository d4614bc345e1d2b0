package repository

import (
	"techacademy_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create 唯一键冲突返回 gorm.ErrDuplicatedKey（需开启 TranslateError）
func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByUserID(userID string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("user_id = ?", userID).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", model.NormalizeEmail(email)).First(&user).Error
	return &user, err
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("email = ?", model.NormalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

// RecordLogin 只更新登录相关字段
func (r *UserRepository) RecordLogin(user *model.User, now time.Time) error {
	user.RecordLogin(now)
	return r.DB.Model(user).Updates(map[string]interface{}{
		"status":        user.Status,
		"last_login_at": user.LastLoginAt,
	}).Error
}

func (r *UserRepository) List() ([]model.User, error) {
	var users []model.User
	err := r.DB.Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *UserRepository) ListByRoles(roles ...model.UserRole) ([]model.User, error) {
	var users []model.User
	err := r.DB.Where("role IN ?", roles).
		Order("first_name ASC, last_name ASC").
		Find(&users).Error
	return users, err
}

// FindTraineesByIDs 按 userId 批量查询学员
func (r *UserRepository) FindTraineesByIDs(userIDs []string) ([]model.User, error) {
	var users []model.User
	if len(userIDs) == 0 {
		return users, nil
	}
	err := r.DB.Where("user_id IN ? AND role = ?", userIDs, model.Trainee).
		Order("first_name ASC, last_name ASC").
		Find(&users).Error
	return users, err
}

// DeleteByUserID 返回是否删除了记录
func (r *UserRepository) DeleteByUserID(userID string) (bool, error) {
	res := r.DB.Where("user_id = ?", userID).Delete(&model.User{})
	return res.RowsAffected > 0, res.Error
}
