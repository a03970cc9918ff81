package controller

import (
	"strconv"

	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	GradingService *service.GradingService
	ResultService  *service.ResultService
	Hub            *service.LeaderboardHub
}

func NewAttemptController(gradingService *service.GradingService, resultService *service.ResultService, hub *service.LeaderboardHub) *AttemptController {
	return &AttemptController{GradingService: gradingService, ResultService: resultService, Hub: hub}
}

// SubmitAttempt godoc
// @Summary 提交答题
// @Description JSON {"answers":{"<questionId>":<answerId>}} 或表单 question_<questionId>=<answerId>
// @Tags 答题
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=service.AttemptOutcome}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	selections, err := bindAttemptSelections(ctx)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	outcome, err := c.GradingService.SubmitQuizAttempt(ctx.Request.Context(), quizID, actor, selections)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, outcome)
}

// ListAttempts godoc
// @Summary 我的答题记录
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.AttemptHistory}
// @Router /api/quizzes/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.ResultService.ListAttempts(ctx.Request.Context(), quizID, actor.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// GetAttempt godoc
// @Summary 答题详情
// @Description 包含逐题作答快照，仅本人或超级用户可见
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题记录ID"
// @Success 200 {object} util.Response{data=model.Results}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	resultID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.ResultService.GetAttempt(ctx.Request.Context(), resultID, actor)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Leaderboard godoc
// @Summary 排行榜
// @Description 每个用户的最高分，降序
// @Tags 答题
// @Produce json
// @Param id path int true "测验ID"
// @Param limit query int false "条数"
// @Success 200 {object} util.Response{data=[]repository.LeaderboardRow}
// @Router /api/quizzes/{id}/leaderboard [get]
func (c *AttemptController) Leaderboard(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	rows, err := c.ResultService.Leaderboard(ctx.Request.Context(), quizID, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// LeaderboardFeed godoc
// @Summary 排行榜实时推送
// @Description websocket，连接后先收到当前排行榜，之后每次有人提交答题都会推送 {"type":"LEADERBOARD","data":{...}}
// @Tags 答题
// @Param id path int true "测验ID"
// @Success 101 {string} string "Switching Protocols"
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id}/leaderboard/ws [get]
func (c *AttemptController) LeaderboardFeed(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	rows, err := c.ResultService.Leaderboard(ctx.Request.Context(), quizID, 0)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.Hub.Serve(ctx.Writer, ctx.Request, quizID, rows)
}
