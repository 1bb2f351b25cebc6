package controller

import (
	"credahead_backend/internal/service"
	"credahead_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ScoreController struct {
	PercentileService *service.PercentileService
}

func NewScoreController(percentileService *service.PercentileService) *ScoreController {
	return &ScoreController{PercentileService: percentileService}
}

// PercentileRequest 百分位查询
// swagger:model PercentileRequest
type PercentileRequest struct {
	Score *float64 `json:"score"`
}

// ValidScore 分数必须是 1-10 的整数
func ValidScore(score *float64) (int, bool) {
	if score == nil {
		return 0, false
	}
	v := *score
	if v < 1 || v > 10 || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}

// Percentile godoc
// @Summary 分数百分位
// @Description 计算给定分数在全部历史分数中的百分位，数据读取失败时返回 50
// @Tags 分数
// @Accept  json
// @Produce  json
// @Param   body body PercentileRequest true "分数"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "分数无效"
// @Router /api/scores/percentile [post]
func (c *ScoreController) Percentile(ctx *gin.Context) {
	var req PercentileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.ErrInvalidScore.Error())
		return
	}

	score, ok := ValidScore(req.Score)
	if !ok {
		util.HandleServiceError(ctx, util.ErrInvalidScore)
		return
	}

	util.Success(ctx, gin.H{
		"score":      score,
		"percentile": c.PercentileService.CalculatePercentile(ctx.Request.Context(), score),
	})
}
