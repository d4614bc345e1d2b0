package controller

import (
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type KnowledgeCheckController struct {
	CheckService *service.KnowledgeCheckService
}

func NewKnowledgeCheckController(checkService *service.KnowledgeCheckService) *KnowledgeCheckController {
	return &KnowledgeCheckController{CheckService: checkService}
}

// swagger:model SubmitAnswersRequest
type SubmitAnswersRequest struct {
	Answers []model.SubmittedAnswer `json:"answers" binding:"required"`
}

// GetTest godoc
// @Summary 获取课程测验
// @Description 课程未关联测验时 test 为 null
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/test [get]
func (c *KnowledgeCheckController) GetTest(ctx *gin.Context) {
	test, err := c.CheckService.GetTest(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	if test == nil {
		util.SuccessWithMessage(ctx, "No knowledge check available for this course", gin.H{"test": nil})
		return
	}
	util.Success(ctx, gin.H{"test": test})
}

// SubmitTest godoc
// @Summary 提交测验
// @Description 选择题自动评分，编程题需人工复核；得分不低于 80% 视为通过
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Param   body body SubmitAnswersRequest true "答案"
// @Success 200 {object} util.Response{data=model.GradeResult} "成功"
// @Failure 400 {object} util.Response "缺少答案"
// @Failure 404 {object} util.Response "课程无测验"
// @Router /api/courses/{courseId}/test/submit [post]
func (c *KnowledgeCheckController) SubmitTest(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req SubmitAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Answers array is required")
		return
	}

	result, err := c.CheckService.Submit(ctx.Request.Context(), claims.UserID, ctx.Param("courseId"), req.Answers)
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, result.Message, result)
}

// ListSubmissions godoc
// @Summary 当前用户的测验提交记录
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/courses/{courseId}/test/submissions [get]
func (c *KnowledgeCheckController) ListSubmissions(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}

	submissions, err := c.CheckService.Submissions(claims.UserID, ctx.Param("courseId"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"submissions": submissions, "count": len(submissions)})
}
