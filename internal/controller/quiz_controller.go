package controller

import (
	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService      *service.QuizService
	AuthoringService *service.AuthoringService
}

func NewQuizController(quizService *service.QuizService, authoringService *service.AuthoringService) *QuizController {
	return &QuizController{QuizService: quizService, AuthoringService: authoringService}
}

// ListQuizzes godoc
// @Summary 测验列表
// @Description 按名称搜索（不区分大小写），按创建时间倒序分页
// @Tags 测验
// @Produce json
// @Param q query string false "名称关键字"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	page, limit := pageParams(ctx)
	quizzes, total, err := c.QuizService.ListQuizzes(ctx.Request.Context(), ctx.Query("q"), page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: quizzes, Total: total, Page: page, Limit: limit})
}

// GetQuiz godoc
// @Summary 测验详情
// @Description 返回有序的题目与选项；创建者或超级用户可看到正确答案与解析
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizView}
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var actor *service.Actor
	if a, ok := currentActor(ctx); ok {
		actor = &a
	}

	view, err := c.QuizService.GetQuiz(ctx.Request.Context(), quizID, actor)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description multipart 表单（questions[]、points[]、question_images[]、all_answers[i][]、correct_answer_i、descriptions[]、description_images[]）或 JSON
// @Tags 测验
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.AuthoringBatch false "JSON 形式的题目批次"
// @Success 201 {object} util.Response{data=service.QuizSummary}
// @Failure 400 {object} util.Response
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	batch, err := bindAuthoringBatch(ctx)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	draft := service.QuizDraft{}
	if batch.Name != nil {
		draft.Name = *batch.Name
	}
	if batch.Description != nil {
		draft.Description = *batch.Description
	}

	summary, err := c.AuthoringService.CreateQuiz(ctx.Request.Context(), actor.UserID, draft, batch)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, summary)
}

// AppendQuestions godoc
// @Summary 追加题目
// @Tags 测验
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=service.QuizSummary}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id}/questions [post]
func (c *QuizController) AppendQuestions(ctx *gin.Context) {
	quizID, ok := c.authorize(ctx)
	if !ok {
		return
	}

	batch, err := bindAuthoringBatch(ctx)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	summary, err := c.AuthoringService.SubmitQuizAuthoring(ctx.Request.Context(), quizID, batch)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, summary)
}

// EditQuiz godoc
// @Summary 编辑测验
// @Description 第 i 个非空题目覆盖第 i 道现有题目，多出的追加，不足的删除
// @Tags 测验
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizSummary}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quizzes/{id} [put]
func (c *QuizController) EditQuiz(ctx *gin.Context) {
	quizID, ok := c.authorize(ctx)
	if !ok {
		return
	}

	batch, err := bindAuthoringBatch(ctx)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	summary, err := c.AuthoringService.SubmitQuizEdit(ctx.Request.Context(), quizID, batch)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	quizID, ok := c.authorize(ctx)
	if !ok {
		return
	}

	if err := c.QuizService.DeleteQuiz(ctx.Request.Context(), quizID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": quizID})
}

// authorize 解析路径 ID 并校验创建者或超级用户身份
func (c *QuizController) authorize(ctx *gin.Context) (uint, bool) {
	actor, ok := requireActor(ctx)
	if !ok {
		return 0, false
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return 0, false
	}
	if err := c.QuizService.Authorize(ctx.Request.Context(), quizID, actor); err != nil {
		util.HandleServiceError(ctx, err)
		return 0, false
	}
	return quizID, true
}
