package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// QuestionController lets staff manage check-in questions.
type QuestionController struct {
	engine *services.Engine
}

// NewQuestionController creates a new controller instance.
func NewQuestionController(engine *services.Engine) *QuestionController {
	return &QuestionController{engine: engine}
}

// List returns questions, optionally filtered by ?status=.
func (q *QuestionController) List(ctx *gin.Context) {
	items, err := q.engine.ListQuestions(ctx.Request.Context(), models.QuestionStatus(ctx.Query("status")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	// staff see answers
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		out = append(out, questionView(it))
	}
	utils.Success(ctx, out)
}

// Create adds a question.
func (q *QuestionController) Create(ctx *gin.Context) {
	staffID, _ := getUserID(ctx)
	var req struct {
		QuestionText string `json:"question_text" binding:"required"`
		Answer       string `json:"answer" binding:"required"`
		Points       int64  `json:"points"`
		IsPriority   bool   `json:"is_priority"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	created, err := q.engine.CreateQuestion(ctx.Request.Context(), staffID, services.NewQuestion{
		QuestionText: utils.SanitizeText(req.QuestionText),
		Answer:       req.Answer,
		Points:       req.Points,
		IsPriority:   req.IsPriority,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, questionView(*created))
}

// Update edits the fields present in the body.
func (q *QuestionController) Update(ctx *gin.Context) {
	staffID, _ := getUserID(ctx)
	questionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		QuestionText *string                `json:"question_text"`
		Answer       *string                `json:"answer"`
		Points       *int64                 `json:"points"`
		IsPriority   *bool                  `json:"is_priority"`
		Status       *models.QuestionStatus `json:"status"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	if req.QuestionText != nil {
		clean := utils.SanitizeText(*req.QuestionText)
		req.QuestionText = &clean
	}
	updated, err := q.engine.UpdateQuestion(ctx.Request.Context(), staffID, questionID, services.QuestionPatch{
		QuestionText: req.QuestionText,
		Answer:       req.Answer,
		Points:       req.Points,
		IsPriority:   req.IsPriority,
		Status:       req.Status,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, questionView(*updated))
}

func questionView(q models.Question) gin.H {
	return gin.H{
		"id":                   q.ID,
		"question_text":        q.QuestionText,
		"answer":               q.Answer,
		"points":               q.Points,
		"is_priority":          q.IsPriority,
		"status":               q.Status,
		"display_count":        q.DisplayCount,
		"correct_answer_count": q.CorrectAnswerCount,
		"created_at":           q.CreatedAt,
		"updated_at":           q.UpdatedAt,
	}
}
