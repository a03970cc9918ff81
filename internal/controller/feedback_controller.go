package controller

import (
	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FeedbackController struct {
	FeedbackService *service.FeedbackService
}

func NewFeedbackController(feedbackService *service.FeedbackService) *FeedbackController {
	return &FeedbackController{FeedbackService: feedbackService}
}

type CommentRequest struct {
	Content string `json:"content" form:"content"`
}

type ReportRequest struct {
	Reason string `json:"reason" form:"reason"`
}

// ListComments godoc
// @Summary 评论列表
// @Tags 评论与举报
// @Produce json
// @Param id path int true "测验ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/quizzes/{id}/comments [get]
func (c *FeedbackController) ListComments(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	page, limit := pageParams(ctx)

	comments, total, err := c.FeedbackService.ListComments(ctx.Request.Context(), quizID, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: comments, Total: total, Page: page, Limit: limit})
}

// AddComment godoc
// @Summary 发表评论
// @Tags 评论与举报
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body CommentRequest true "评论内容"
// @Success 201 {object} util.Response{data=model.Comment}
// @Router /api/quizzes/{id}/comments [post]
func (c *FeedbackController) AddComment(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req CommentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	comment, err := c.FeedbackService.AddComment(ctx.Request.Context(), quizID, actor, req.Content)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, comment)
}

// DeleteComment godoc
// @Summary 删除评论
// @Description 评论作者或超级用户
// @Tags 评论与举报
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "评论ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/comments/{id} [delete]
func (c *FeedbackController) DeleteComment(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	commentID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.FeedbackService.DeleteComment(ctx.Request.Context(), commentID, actor); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": commentID})
}

// ReportQuiz godoc
// @Summary 举报测验
// @Tags 评论与举报
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body ReportRequest true "举报原因"
// @Success 201 {object} util.Response{data=model.Report}
// @Router /api/quizzes/{id}/reports [post]
func (c *FeedbackController) ReportQuiz(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req ReportRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	report, err := c.FeedbackService.ReportQuiz(ctx.Request.Context(), quizID, actor, req.Reason)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, report)
}
