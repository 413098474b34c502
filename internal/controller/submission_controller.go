package controller

import (
	"encoding/json"

	"grading_backend/internal/model"
	"grading_backend/internal/service"
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	Service *service.SubmissionService
}

func NewSubmissionController(svc *service.SubmissionService) *SubmissionController {
	return &SubmissionController{Service: svc}
}

type SubmissionRequest struct {
	Answers []json.RawMessage `json:"answers" binding:"required"`
	IsDraft bool              `json:"isDraft"`
}

type AdjustScoreRequest struct {
	AdjustedScore *float64 `json:"adjustedScore" binding:"required"`
}

func decodeAnswers(raw []json.RawMessage) ([]model.Answer, error) {
	answers := make([]model.Answer, 0, len(raw))
	for _, r := range raw {
		a, err := model.DecodeAnswerJSON(r)
		if err != nil {
			return nil, util.NewBadRequestError("%v", err)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

// @Summary 提交评分
// @Tags 提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Param body body SubmissionRequest true "答案"
// @Success 201 {object} util.Response
// @Router /api/assessments/{id}/submissions [post]
func (c *SubmissionController) CreateSubmission(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	sub, err := c.Service.CreateSubmission(ctx.Request.Context(), ctx.Param("id"), claims.UserID, answers, req.IsDraft)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, sub)
}

// @Summary 测评的全部提交（教师）
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submissions [get]
func (c *SubmissionController) ListSubmissions(ctx *gin.Context) {
	assessmentID := ctx.Param("id")
	if !c.requireManager(ctx, assessmentID) {
		return
	}
	subs, err := c.Service.GetSubmissionsByAssessment(ctx.Request.Context(), assessmentID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

// @Summary 我在该测评下的提交
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/submissions/me [get]
func (c *SubmissionController) ListMySubmissions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	subs, err := c.Service.GetSubmissionsByAssessmentAndUser(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

// @Summary 提交详情
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	sub, ok := c.loadOwnedOrManaged(ctx)
	if !ok {
		return
	}
	util.Success(ctx, sub)
}

// @Summary 修改提交
// @Tags 提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Param body body SubmissionRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id} [patch]
func (c *SubmissionController) UpdateSubmission(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req SubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	sub, err := c.Service.UpdateSubmission(ctx.Request.Context(), ctx.Param("id"), claims.UserID, claims.AccountID, answers, req.IsDraft)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 删除提交
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id} [delete]
func (c *SubmissionController) DeleteSubmission(ctx *gin.Context) {
	if _, ok := c.loadOwnedOrManaged(ctx); !ok {
		return
	}
	if err := c.Service.DeleteSubmission(ctx.Request.Context(), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 重新评分（教师）
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id}/regrade [post]
func (c *SubmissionController) RegradeSubmission(ctx *gin.Context) {
	if _, ok := c.loadManaged(ctx); !ok {
		return
	}
	sub, err := c.Service.RegradeSubmission(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 人工调分（教师）
// @Tags 提交
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "提交ID"
// @Param body body AdjustScoreRequest true "调整后的分数"
// @Success 200 {object} util.Response
// @Router /api/submissions/{id}/adjust-score [patch]
func (c *SubmissionController) AdjustScore(ctx *gin.Context) {
	var req AdjustScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if _, ok := c.loadManaged(ctx); !ok {
		return
	}
	sub, err := c.Service.AdjustSubmissionScore(ctx.Request.Context(), ctx.Param("id"), *req.AdjustedScore)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 重新评分整个测评（教师）
// @Tags 提交
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/regrade [post]
func (c *SubmissionController) RegradeAssessment(ctx *gin.Context) {
	assessmentID := ctx.Param("id")
	if !c.requireManager(ctx, assessmentID) {
		return
	}
	n, err := c.Service.RegradeAssessmentSubmissions(ctx.Request.Context(), assessmentID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"regraded": n})
}

func (c *SubmissionController) requireManager(ctx *gin.Context, assessmentID string) bool {
	claims := util.GetUserFromContext(ctx)
	ok, err := c.Service.CanManageAssessment(ctx.Request.Context(), claims.AccountID, assessmentID)
	if err != nil {
		util.HandleError(ctx, err)
		return false
	}
	if !ok {
		util.Forbidden(ctx)
		return false
	}
	return true
}

// loadManaged 课程教师/管理员；已删除的提交也可加载，由服务层决定如何处理
func (c *SubmissionController) loadManaged(ctx *gin.Context) (*model.Submission, bool) {
	sub, err := c.Service.GetSubmissionRecord(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return nil, false
	}
	if !c.requireManager(ctx, sub.AssessmentID) {
		return nil, false
	}
	return sub, true
}

// loadOwnedOrManaged 提交者本人或课程教师/管理员
func (c *SubmissionController) loadOwnedOrManaged(ctx *gin.Context) (*model.Submission, bool) {
	sub, err := c.Service.GetSubmissionByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return nil, false
	}
	if sub.UserID == util.GetUserFromContext(ctx).UserID {
		return sub, true
	}
	if !c.requireManager(ctx, sub.AssessmentID) {
		return nil, false
	}
	return sub, true
}
