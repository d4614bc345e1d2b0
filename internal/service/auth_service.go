package service

import (
	"errors"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
	now      func() time.Time
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
		now:      time.Now,
	}
}

// LoginUser 登录返回的用户信息
type LoginUser struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Role      model.UserRole `json:"role"`
}

type LoginResult struct {
	User  LoginUser `json:"user"`
	Token string    `json:"token"`
}

// Login 校验密码，记录登录时间并将 pending 用户置为 accepted
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	if err := s.UserRepo.RecordLogin(user, s.now()); err != nil {
		return nil, err
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("User logged in", zap.String("userId", user.UserID), zap.String("role", string(user.Role)))
	return &LoginResult{
		User: LoginUser{
			UserID:    user.UserID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Role:      user.Role,
		},
		Token: token,
	}, nil
}
