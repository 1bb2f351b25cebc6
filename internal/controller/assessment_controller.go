package controller

import (
	"credahead_backend/internal/service"
	"credahead_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
}

func NewAssessmentController(assessmentService *service.AssessmentService) *AssessmentController {
	return &AssessmentController{AssessmentService: assessmentService}
}

// AnswerRequest 作答请求
// swagger:model AnswerRequest
type AnswerRequest struct {
	QuestionID     string `json:"questionId" binding:"required"`
	SelectedOption *int   `json:"selectedOption" binding:"required"`
}

// StartAssessment godoc
// @Summary 开始自适应测评
// @Description 放弃进行中的测评并开始新的测评，返回第一题
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Success 201 {object} util.Response{data=service.AssessmentStep}
// @Failure 401 {object} util.Response "未登录"
// @Router /api/assessment/sessions [post]
func (c *AssessmentController) StartAssessment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	step, err := c.AssessmentService.Start(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, step)
}

// SubmitAnswer godoc
// @Summary 提交测评作答
// @Description 记录作答并返回下一题；最后一题或题库耗尽时返回测评结果
// @Tags 测评
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "会话ID"
// @Param   body body AnswerRequest true "作答"
// @Success 200 {object} util.Response{data=service.AssessmentStep}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "会话不存在"
// @Failure 409 {object} util.Response "会话已结束或题目不匹配"
// @Router /api/assessment/sessions/{id}/answers [post]
func (c *AssessmentController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	step, err := c.AssessmentService.Answer(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req.QuestionID, *req.SelectedOption)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, step)
}

// GetResult godoc
// @Summary 测评结果
// @Description 已完成测评的等级、分模块正确率与百分位
// @Tags 测评
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.AssessmentResult}
// @Failure 404 {object} util.Response "会话不存在"
// @Failure 409 {object} util.Response "测评尚未完成"
// @Router /api/assessment/sessions/{id}/result [get]
func (c *AssessmentController) GetResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.AssessmentService.Result(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
