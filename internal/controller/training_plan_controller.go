package controller

import (
	"errors"
	"net/http"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TrainingPlanController struct {
	PlanService *service.TrainingPlanService
}

func NewTrainingPlanController(planService *service.TrainingPlanService) *TrainingPlanController {
	return &TrainingPlanController{PlanService: planService}
}

// ListPlans godoc
// @Summary 培训计划列表
// @Tags 培训计划
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/training-plans [get]
func (c *TrainingPlanController) ListPlans(ctx *gin.Context) {
	plans, err := c.PlanService.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"trainingPlans": plans})
}

// CreatePlan godoc
// @Summary 创建培训计划
// @Description 计划以草稿状态创建，所有模块初始为 pending
// @Tags 培训计划
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreatePlanRequest true "计划信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "学员不存在"
// @Router /api/training-plans [post]
func (c *TrainingPlanController) CreatePlan(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req service.CreatePlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, invalidBodyMessage)
		return
	}

	plan, err := c.PlanService.Create(claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrPlanFieldsMissing):
			util.BadRequest(ctx, "Plan name, trainee, and at least one module are required")
		case errors.Is(err, util.ErrTraineeNotFound):
			util.Error(ctx, http.StatusNotFound, "Trainee not found")
		case errors.Is(err, util.ErrNotATrainee):
			util.BadRequest(ctx, "Selected user is not a trainee")
		case errors.Is(err, util.ErrTrainerNotFound):
			util.BadRequest(ctx, "Trainer not found")
		case errors.Is(err, util.ErrPlanModuleInvalid):
			util.BadRequest(ctx, "Each module must have a name, start date, and end date")
		case errors.Is(err, util.ErrPlanModuleDates):
			util.BadRequest(ctx, "End date must be after start date for each module")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.CreatedWithMessage(ctx, "Training plan created successfully", gin.H{"trainingPlan": plan})
}

// PlanProgress godoc
// @Summary 培训计划进度
// @Description 学员返回自己的计划，管理员返回按学员汇总的进度
// @Tags 培训计划
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.PlanProgressReport} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/training-plans/progress [get]
func (c *TrainingPlanController) PlanProgress(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	report, err := c.PlanService.Progress(claims.UserID, claims.Role)
	if err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, report)
}
