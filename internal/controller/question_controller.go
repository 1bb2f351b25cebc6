package controller

import (
	"credahead_backend/internal/service"
	"credahead_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// GetStats godoc
// @Summary 题目作答统计
// @Tags 题目
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response{data=service.QuestionStats}
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id}/stats [get]
func (c *QuestionController) GetStats(ctx *gin.Context) {
	stats, err := c.QuestionService.Stats(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
