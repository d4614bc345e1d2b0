package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	inviteBcryptCost = 10
	mailTimeout      = 15 * time.Second
)

type UserService struct {
	UserRepo *repository.UserRepository
	RoleRepo *repository.RoleRepository
	Mailer   Mailer
	LoginURL string
}

func NewUserService(userRepo *repository.UserRepository, roleRepo *repository.RoleRepository, mailer Mailer, loginURL string) *UserService {
	return &UserService{
		UserRepo: userRepo,
		RoleRepo: roleRepo,
		Mailer:   mailer,
		LoginURL: loginURL,
	}
}

type InviteUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Role      string `json:"role" binding:"required,academyrole"`
}

type InviteUserResult struct {
	User              *model.User `json:"user"`
	GeneratedPassword string      `json:"generatedPassword"`
	EmailSent         bool        `json:"emailSent"`
	EmailError        *string     `json:"emailError"`
	Message           string      `json:"message"`
}

// Invite 创建 pending 用户并发送邀请邮件；邮件失败只记录日志，不影响创建
func (s *UserService) Invite(ctx context.Context, inviterID string, req InviteUserRequest) (*InviteUserResult, error) {
	role := model.UserRole(req.Role)
	if !role.Valid() {
		return nil, util.ErrInvalidRole
	}

	email := model.NormalizeEmail(req.Email)
	exists, err := s.UserRepo.ExistsByEmail(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrEmailRegistered
	}

	password, err := util.GeneratePassword(util.GeneratedPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), inviteBcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		UserID:    util.NewUserID(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Password:  string(hash),
		Role:      role,
		Status:    model.UserPending,
		InvitedBy: inviterID,
		InvitedAt: &now,
	}
	if err := s.UserRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}

	result := &InviteUserResult{User: user, GeneratedPassword: password}

	mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	err = s.Mailer.SendInvite(mailCtx, Invite{
		Email:     email,
		FirstName: user.FirstName,
		Password:  password,
		LoginURL:  s.LoginURL,
	})
	if err != nil {
		logger.Log.Error("Failed to send invitation email", zap.String("email", email), zap.Error(err))
		msg := err.Error()
		result.EmailError = &msg
		result.Message = "User created successfully. Please share the password manually as email could not be sent."
	} else {
		result.EmailSent = true
		result.Message = "User created and invitation email sent successfully"
	}

	logger.Log.Info("User invited",
		zap.String("userId", user.UserID),
		zap.String("role", string(role)),
		zap.String("invitedBy", inviterID),
		zap.Bool("emailSent", result.EmailSent),
	)
	return result, nil
}

func (s *UserService) List() ([]model.User, error) {
	return s.UserRepo.List()
}

// Trainers 管理员与超级管理员可作为培训讲师
func (s *UserService) Trainers() ([]model.User, error) {
	return s.UserRepo.ListByRoles(model.Admin, model.SuperAdmin)
}

func (s *UserService) Trainees() ([]model.User, error) {
	return s.UserRepo.ListByRoles(model.Trainee)
}

// Delete 管理员删除用户，禁止删除自己
func (s *UserService) Delete(actorID, userID string) error {
	if actorID == userID {
		return util.ErrSelfDelete
	}
	deleted, err := s.UserRepo.DeleteByUserID(userID)
	if err != nil {
		return err
	}
	if !deleted {
		return util.ErrUserNotFound
	}
	logger.Log.Info("User deleted", zap.String("userId", userID), zap.String("deletedBy", actorID))
	return nil
}

// Roles 角色表为空时返回内置角色
func (s *UserService) Roles() ([]model.Role, error) {
	roles, err := s.RoleRepo.List()
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return model.DefaultRoles(), nil
	}
	return roles, nil
}
