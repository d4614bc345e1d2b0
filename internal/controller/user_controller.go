package controller

import (
	"errors"
	"net/http"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

var inviteMessages = map[string]string{
	"required":    "All fields are required",
	"email":       "Invalid email format",
	"academyrole": "Invalid role",
}

// ListUsers godoc
// @Summary 用户列表
// @Tags 用户
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	users, err := c.UserService.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"users": users, "count": len(users)})
}

// InviteUser godoc
// @Summary 邀请用户
// @Description 管理员创建账号并生成随机密码，邀请邮件发送失败时仍返回密码供手动转告
// @Tags 用户
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.InviteUserRequest true "用户信息"
// @Success 201 {object} util.Response{data=service.InviteUserResult} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误或邮箱已存在"
// @Router /api/users [post]
func (c *UserController) InviteUser(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req service.InviteUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, bindingMessage(err, inviteMessages, invalidBodyMessage))
		return
	}

	result, err := c.UserService.Invite(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidRole):
			util.BadRequest(ctx, "Invalid role")
		case errors.Is(err, util.ErrEmailRegistered):
			util.BadRequest(ctx, "User with this email already exists")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.CreatedWithMessage(ctx, result.Message, result)
}

// DeleteUser godoc
// @Summary 删除用户
// @Tags 用户
// @Produce  json
// @Security ApiKeyAuth
// @Param   userId path string true "用户ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "不能删除自己"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{userId} [delete]
func (c *UserController) DeleteUser(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	if err := c.UserService.Delete(claims.UserID, ctx.Param("userId")); err != nil {
		switch {
		case errors.Is(err, util.ErrSelfDelete):
			util.BadRequest(ctx, "You cannot delete your own account")
		case errors.Is(err, util.ErrUserNotFound):
			util.Error(ctx, http.StatusNotFound, "User not found")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.SuccessWithMessage(ctx, "User deleted successfully", nil)
}

// ListTrainers godoc
// @Summary 讲师列表
// @Description 管理员与超级管理员，按姓名排序
// @Tags 用户
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/users/trainers [get]
func (c *UserController) ListTrainers(ctx *gin.Context) {
	trainers, err := c.UserService.Trainers()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"trainers": trainers, "count": len(trainers)})
}

// ListTrainees godoc
// @Summary 学员列表
// @Tags 用户
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/users/trainees [get]
func (c *UserController) ListTrainees(ctx *gin.Context) {
	trainees, err := c.UserService.Trainees()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"trainees": trainees, "count": len(trainees)})
}

// ListRoles godoc
// @Summary 角色列表
// @Tags 用户
// @Produce  json
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/roles [get]
func (c *UserController) ListRoles(ctx *gin.Context) {
	roles, err := c.UserService.Roles()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"roles": roles})
}
