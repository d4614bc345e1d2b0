package controller

import (
	"errors"
	"strconv"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// swagger:model CompleteModuleRequest
type CompleteModuleRequest struct {
	ModuleUID    string `json:"moduleUid" binding:"required"`
	TotalModules int    `json:"totalModules" binding:"min=0"`
}

// GetProgress godoc
// @Summary 当前用户的课程进度
// @Description 无记录时返回未开始状态
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Param   totalModules query int false "课程当前模块数"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	total, _ := strconv.Atoi(ctx.Query("totalModules"))

	progress, err := c.ProgressService.Get(ctx.Request.Context(), claims.UserID, ctx.Param("courseId"), total)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": progress})
}

// CompleteModule godoc
// @Summary 标记模块完成
// @Description 幂等；未提供 totalModules 时从 CMS 读取课程模块数。并发冲突返回 409，可重试
// @Tags 进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Param   body body CompleteModuleRequest true "完成的模块"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "缺少 moduleUid"
// @Failure 409 {object} util.Response "并发冲突"
// @Router /api/courses/{courseId}/progress [post]
func (c *ProgressController) CompleteModule(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req CompleteModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, bindingMessage(err, map[string]string{
			"ModuleUID":    "Module UID is required",
			"TotalModules": "totalModules must not be negative",
		}, "Module UID is required"))
		return
	}

	progress, err := c.ProgressService.CompleteModule(ctx.Request.Context(), claims.UserID, ctx.Param("courseId"), req.ModuleUID, req.TotalModules)
	if err != nil {
		if errors.Is(err, util.ErrProgressConflict) {
			util.Conflict(ctx, "Progress was updated concurrently, please retry")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.SuccessWithMessage(ctx, "Module marked as complete", gin.H{"progress": progress})
}

// AdminProgress godoc
// @Summary 所有学员课程进度
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/courses/progress/admin [get]
func (c *ProgressController) AdminProgress(ctx *gin.Context) {
	report, err := c.ProgressService.AdminReport()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"progress": report})
}
