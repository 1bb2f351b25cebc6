package controller

import (
	"credahead_backend/internal/service"
	"credahead_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonQuizController struct {
	QuizService *service.LessonQuizService
}

func NewLessonQuizController(quizService *service.LessonQuizService) *LessonQuizController {
	return &LessonQuizController{QuizService: quizService}
}

// StartQuiz godoc
// @Summary 开始课程小测
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   lessonId path string true "课程ID"
// @Success 201 {object} util.Response{data=service.LessonQuizStep}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/lessons/{lessonId}/quiz [post]
func (c *LessonQuizController) StartQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	step, err := c.QuizService.Start(ctx.Request.Context(), claims.UserID, ctx.Param("lessonId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, step)
}

// SubmitAnswer godoc
// @Summary 提交课程小测作答
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   lessonId path string true "课程ID"
// @Param   id path string true "会话ID"
// @Param   body body AnswerRequest true "作答"
// @Success 200 {object} util.Response{data=service.LessonQuizStep}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "会话已结束或题目不匹配"
// @Router /api/lessons/{lessonId}/quiz/{id}/answers [post]
func (c *LessonQuizController) SubmitAnswer(ctx *gin.Context) {
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

	step, err := c.QuizService.Answer(ctx.Request.Context(), claims.UserID, ctx.Param("lessonId"), ctx.Param("id"), req.QuestionID, *req.SelectedOption)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, step)
}
