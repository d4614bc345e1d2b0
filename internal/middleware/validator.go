package middleware

import (
	"techacademy_backend/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义 binding 校验规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("academyrole", func(fl validator.FieldLevel) bool {
		return model.UserRole(fl.Field().String()).Valid()
	})
}
