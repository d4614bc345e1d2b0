package controller

import (
	"errors"
	"net/http"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
	DocsService   *service.DocsService
}

func NewCourseController(courseService *service.CourseService, docsService *service.DocsService) *CourseController {
	return &CourseController{
		CourseService: courseService,
		DocsService:   docsService,
	}
}

// cmsFailure 统一处理 CMS 相关错误
func cmsFailure(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCourseNotFound):
		util.Error(ctx, http.StatusNotFound, "Course not found")
	case errors.Is(err, util.ErrEntryNotFound):
		util.Error(ctx, http.StatusNotFound, "Entry not found")
	case errors.Is(err, util.ErrNoKnowledgeCheck):
		util.Error(ctx, http.StatusNotFound, "No knowledge check found for this course")
	case errors.Is(err, util.ErrCMSUnavailable):
		util.BadGateway(ctx, err)
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListCourses godoc
// @Summary 课程列表
// @Description 支持关键字搜索；taxonomy 参数匹配该分类及其所有子分类
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   search query string false "搜索关键字"
// @Param   taxonomy query string false "分类 uid"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 502 {object} util.Response "CMS 不可用"
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.ListCourses(ctx.Request.Context(), ctx.Query("search"), ctx.Query("taxonomy"))
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"courses": courses, "count": len(courses)})
}

// GetCourse godoc
// @Summary 课程详情（原始条目）
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path string true "课程 uid"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CourseService.GetCourse(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"course": course})
}

// GetCourseEntry godoc
// @Summary 课程详情（映射后）
// @Description 字段统一映射，模块按 module_number 排序
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   entryId path string true "条目 uid"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "条目不存在"
// @Router /api/courses/entry/{entryId} [get]
func (c *CourseController) GetCourseEntry(ctx *gin.Context) {
	course, err := c.CourseService.GetEntry(ctx.Request.Context(), ctx.Param("entryId"))
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"course": course})
}

// ListModules godoc
// @Summary 课程模块列表
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/course-modules [get]
func (c *CourseController) ListModules(ctx *gin.Context) {
	modules, err := c.CourseService.ListModules(ctx.Request.Context())
	if err != nil {
		cmsFailure(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"modules": modules, "count": len(modules)})
}

// GetTaxonomy godoc
// @Summary 分类术语
// @Description 返回扁平列表与树形结构；API 不可用时读取本地文件
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   uid query string false "分类 uid，默认 course_module"
// @Success 200 {object} util.Response{data=service.TaxonomyResult} "成功"
// @Router /api/taxonomy [get]
func (c *CourseController) GetTaxonomy(ctx *gin.Context) {
	util.Success(ctx, c.CourseService.Taxonomy(ctx.Request.Context(), ctx.Query("uid")))
}

// GetDocsUpdates godoc
// @Summary Contentstack 文档动态
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/contentstack-docs [get]
func (c *CourseController) GetDocsUpdates(ctx *gin.Context) {
	updates, message := c.DocsService.Updates(ctx.Request.Context())
	util.SuccessWithMessage(ctx, message, gin.H{"updates": updates})
}
