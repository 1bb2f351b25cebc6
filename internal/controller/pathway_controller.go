package controller

import (
	"credahead_backend/internal/service"
	"credahead_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PathwayController struct {
	PathwayService *service.PathwayService
}

func NewPathwayController(pathwayService *service.PathwayService) *PathwayController {
	return &PathwayController{PathwayService: pathwayService}
}

// GetPathway godoc
// @Summary 学习路径
// @Description 按等级排序的课程及完成/可学/锁定状态
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.PathwayLesson}
// @Router /api/pathway [get]
func (c *PathwayController) GetPathway(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	lessons, err := c.PathwayService.Pathway(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}
