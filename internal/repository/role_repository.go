package repository

import (
	"techacademy_backend/internal/model"

	"gorm.io/gorm"
)

type RoleRepository struct {
	DB *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{DB: db}
}

func (r *RoleRepository) List() ([]model.Role, error) {
	var roles []model.Role
	err := r.DB.Order("id ASC").Find(&roles).Error
	return roles, err
}
