package controller

import (
	"strconv"

	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentActor 从 JWT claims 构造 Actor，未登录时 ok 为 false
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:      claims.UserID,
		Username:    claims.Username,
		IsSuperuser: claims.IsSuperuser,
	}, true
}

func requireActor(ctx *gin.Context) (service.Actor, bool) {
	actor, ok := currentActor(ctx)
	if !ok {
		util.Unauthorized(ctx)
	}
	return actor, ok
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, ok := util.ParseID(ctx.Param(name))
	if !ok {
		util.BadRequest(ctx, "无效的ID")
	}
	return id, ok
}

func pageParams(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	return util.Paging(page, limit)
}
