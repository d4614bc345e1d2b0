package controller

import (
	"errors"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const invalidBodyMessage = "Invalid request body"

// bindingMessage 将 binding 校验错误转换为对外提示。
// 依次查找 "字段.规则"、"字段"、"规则"，都没有时返回 fallback
func bindingMessage(err error, messages map[string]string, fallback string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fallback
	}
	fe := verrs[0]
	for _, key := range []string{fe.Field() + "." + fe.Tag(), fe.Field(), fe.Tag()} {
		if msg, ok := messages[key]; ok {
			return msg
		}
	}
	return fallback
}

// currentUser 已通过 AuthMiddleware 的请求一定带有 claims
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}
