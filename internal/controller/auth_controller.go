package controller

import (
	"errors"
	"net/http"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
	IsRelease   bool // 是否为生产环境
	CookieTTL   time.Duration
}

func NewAuthController(authService *service.AuthService, isRelease bool, cookieTTL time.Duration) *AuthController {
	if cookieTTL <= 0 {
		cookieTTL = 7 * 24 * time.Hour
	}
	return &AuthController{
		AuthService: authService,
		IsRelease:   isRelease,
		CookieTTL:   cookieTTL,
	}
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

var loginMessages = map[string]string{
	"Email":    "Invalid email format",
	"Password": "Password is required and must be at least 8 characters",
}

// Login godoc
// @Summary 用户登录
// @Description 校验邮箱与密码，返回 JWT 并写入 HttpOnly Cookie
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "用户登录凭据"
// @Success 200 {object} util.Response{data=service.LoginResult} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, bindingMessage(err, loginMessages, invalidBodyMessage))
		return
	}

	result, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Error(ctx, http.StatusUnauthorized, "Invalid email or password")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(util.TokenCookieName, result.Token, int(c.CookieTTL.Seconds()), "/", "", c.IsRelease, true)

	util.SuccessWithMessage(ctx, "Login successful", result)
}
