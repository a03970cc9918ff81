package controller

import (
	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	FeedbackService  *service.FeedbackService
	AuthoringService *service.AuthoringService
}

func NewAdminController(feedbackService *service.FeedbackService, authoringService *service.AuthoringService) *AdminController {
	return &AdminController{FeedbackService: feedbackService, AuthoringService: authoringService}
}

// ListReports godoc
// @Summary 举报列表
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Failure 403 {object} util.Response
// @Router /api/admin/reports [get]
func (c *AdminController) ListReports(ctx *gin.Context) {
	page, limit := pageParams(ctx)
	reports, total, err := c.FeedbackService.ListReports(ctx.Request.Context(), page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: reports, Total: total, Page: page, Limit: limit})
}

// RecomputeQuizStats godoc
// @Summary 重算测验统计
// @Description 根据题目重算题目数与总分
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizSummary}
// @Failure 404 {object} util.Response
// @Router /api/admin/quizzes/{id}/recompute [post]
func (c *AdminController) RecomputeQuizStats(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	summary, err := c.AuthoringService.RecomputeQuizStats(ctx.Request.Context(), quizID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
