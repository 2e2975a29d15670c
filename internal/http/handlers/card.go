package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/http/response"
	"github.com/tenxcards/tenxcards-backend/internal/services"
)

type CardHandler struct {
	cards services.CardService
}

func NewCardHandler(cards services.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

type listCardsQuery struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	SourceType string `form:"source_type" binding:"omitempty,oneof=manual ai ai_edited"`
	Q          string `form:"q" binding:"omitempty,max=200"`
}

type createCardRequest struct {
	FrontContent string `json:"front_content" binding:"required,min=1,max=200"`
	BackContent  string `json:"back_content" binding:"required,min=1,max=500"`
}

type updateCardRequest struct {
	FrontContent *string `json:"front_content" binding:"omitempty,min=1,max=200"`
	BackContent  *string `json:"back_content" binding:"omitempty,min=1,max=500"`
}

// GET /api/cards
func (h *CardHandler) List(c *gin.Context) {
	var q listCardsQuery
	if err := bindQuery(c, &q); err != nil {
		response.RespondError(c, err)
		return
	}
	page, err := h.cards.List(requestDBC(c), requestUser(c), repos.CardFilter{
		SourceType: types.CardSourceType(q.SourceType),
		Query:      q.Q,
	}, types.PageRequest{Page: q.Page, Limit: q.Limit})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// POST /api/cards
func (h *CardHandler) Create(c *gin.Context) {
	var req createCardRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	card, err := h.cards.Create(requestDBC(c), requestUser(c), services.CreateCardInput{
		FrontContent: req.FrontContent,
		BackContent:  req.BackContent,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, card)
}

// GET /api/cards/:id
func (h *CardHandler) Get(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	card, err := h.cards.Get(requestDBC(c), requestUser(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, card)
}

// PUT /api/cards/:id
func (h *CardHandler) Update(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req updateCardRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	card, err := h.cards.Update(requestDBC(c), requestUser(c), id, services.UpdateCardInput{
		FrontContent: req.FrontContent,
		BackContent:  req.BackContent,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, card)
}

// DELETE /api/cards/:id
func (h *CardHandler) Delete(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.cards.Delete(requestDBC(c), requestUser(c), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}
