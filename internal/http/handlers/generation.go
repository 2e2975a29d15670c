package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tenxcards/tenxcards-backend/internal/http/response"
	"github.com/tenxcards/tenxcards-backend/internal/services"
)

// ReviewObserver counts accept/reject decisions. A nil observer is ignored.
type ReviewObserver interface {
	IncReviewAction(action string, n int)
}

type GenerationHandler struct {
	generations services.GenerationService
	obs         ReviewObserver
}

func NewGenerationHandler(generations services.GenerationService, obs ReviewObserver) *GenerationHandler {
	return &GenerationHandler{generations: generations, obs: obs}
}

func (h *GenerationHandler) review(action string, n int) {
	if h.obs != nil && n > 0 {
		h.obs.IncReviewAction(action, n)
	}
}

type processTextRequest struct {
	Text        string  `json:"text" binding:"required,max=10000"`
	TargetCount int     `json:"target_count" binding:"omitempty,min=1,max=50"`
	SetID       *string `json:"set_id" binding:"omitempty,uuid"`
}

type acceptAllRequest struct {
	SetID *string `json:"set_id" binding:"omitempty,uuid"`
}

type acceptCardRequest struct {
	SetID        *string `json:"set_id" binding:"omitempty,uuid"`
	FrontContent *string `json:"front_content" binding:"omitempty,min=1,max=200"`
	BackContent  *string `json:"back_content" binding:"omitempty,min=1,max=500"`
}

type finalizeRequest struct {
	Name          string   `json:"name" binding:"required,min=1,max=100"`
	Description   string   `json:"description" binding:"omitempty,max=500"`
	AcceptedCards []string `json:"accepted_cards" binding:"required,min=1,max=50,dive,uuid"`
}

// POST /api/generation/process-text
func (h *GenerationHandler) ProcessText(c *gin.Context) {
	var req processTextRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	setID, err := optionalUUID("set_id", req.SetID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.generations.ProcessText(requestDBC(c), requestUser(c), services.ProcessTextInput{
		Text:        req.Text,
		TargetCount: req.TargetCount,
		SetID:       setID,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, res)
}

// GET /api/generation
func (h *GenerationHandler) List(c *gin.Context) {
	var q pageQuery
	if err := bindQuery(c, &q); err != nil {
		response.RespondError(c, err)
		return
	}
	page, err := h.generations.List(requestDBC(c), requestUser(c), q.request())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/generation/:id/status
func (h *GenerationHandler) Status(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	st, err := h.generations.Status(requestDBC(c), requestUser(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/generation/:id/results
func (h *GenerationHandler) Results(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.generations.Results(requestDBC(c), requestUser(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/generation/:id/accept
func (h *GenerationHandler) AcceptAll(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req acceptAllRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			response.RespondError(c, err)
			return
		}
	}
	setID, err := optionalUUID("set_id", req.SetID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.generations.AcceptAll(requestDBC(c), requestUser(c), id, setID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	h.review("accept", res.AcceptedCount)
	response.RespondOK(c, res)
}

// POST /api/generation/:id/cards/:cardId/accept
func (h *GenerationHandler) AcceptCard(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	cardID, err := paramUUID(c, "cardId")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req acceptCardRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			response.RespondError(c, err)
			return
		}
	}
	setID, err := optionalUUID("set_id", req.SetID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	card, err := h.generations.AcceptCard(requestDBC(c), requestUser(c), id, cardID, services.AcceptCardInput{
		SetID:        setID,
		FrontContent: req.FrontContent,
		BackContent:  req.BackContent,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	h.review(string(card.SourceType), 1)
	response.RespondCreated(c, card)
}

// POST /api/generation/:id/cards/:cardId/reject
func (h *GenerationHandler) RejectCard(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	cardID, err := paramUUID(c, "cardId")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.generations.RejectCard(requestDBC(c), requestUser(c), id, cardID); err != nil {
		response.RespondError(c, err)
		return
	}
	h.review("reject", 1)
	response.RespondNoContent(c)
}

// POST /api/generation/:id/finalize
func (h *GenerationHandler) Finalize(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req finalizeRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	ids, err := parseUUIDs("accepted_cards", req.AcceptedCards)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	res, err := h.generations.Finalize(requestDBC(c), requestUser(c), id, services.FinalizeInput{
		Name:          req.Name,
		Description:   req.Description,
		AcceptedCards: ids,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	h.review("finalize", res.CardCount)
	response.RespondCreated(c, res)
}
