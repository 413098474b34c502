package controller

import (
	"encoding/json"

	"grading_backend/internal/model"
	"grading_backend/internal/service"
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service     *service.AssessmentService
	Submissions *service.SubmissionService
	Results     *service.ResultAggregator
}

func NewAssessmentController(svc *service.AssessmentService, submissions *service.SubmissionService, results *service.ResultAggregator) *AssessmentController {
	return &AssessmentController{Service: svc, Submissions: submissions, Results: results}
}

type QuestionsRequest struct {
	Questions []json.RawMessage `json:"questions" binding:"required"`
}

// @Summary 创建测评
// @Tags 测评
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.AssessmentRequest true "测评信息"
// @Success 201 {object} util.Response
// @Router /api/assessments [post]
func (c *AssessmentController) CreateAssessment(ctx *gin.Context) {
	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.CreateAssessment(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// @Summary 测评详情（含题目）
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) GetAssessment(ctx *gin.Context) {
	a, err := c.Service.GetAssessment(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 替换测评题目
// @Description 题目变更会递增 releaseNumber，已提交的答卷需重新评分
// @Tags 测评
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Param body body QuestionsRequest true "题目列表"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/questions [put]
func (c *AssessmentController) SetQuestions(ctx *gin.Context) {
	assessmentID := ctx.Param("id")
	var req QuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !c.requireManager(ctx, assessmentID) {
		return
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for _, raw := range req.Questions {
		q, err := model.DecodeQuestionJSON(raw)
		if err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
		questions = append(questions, q)
	}

	a, err := c.Service.SetQuestions(ctx.Request.Context(), assessmentID, questions)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 测评结果台账（教师）
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param id path string true "测评ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id}/results [get]
func (c *AssessmentController) ListResults(ctx *gin.Context) {
	assessmentID := ctx.Param("id")
	if !c.requireManager(ctx, assessmentID) {
		return
	}
	results, err := c.Results.GetResultsByAssessment(ctx.Request.Context(), assessmentID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

func (c *AssessmentController) requireManager(ctx *gin.Context, assessmentID string) bool {
	claims := util.GetUserFromContext(ctx)
	ok, err := c.Submissions.CanManageAssessment(ctx.Request.Context(), claims.AccountID, assessmentID)
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
