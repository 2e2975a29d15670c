package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/http/response"
	"github.com/tenxcards/tenxcards-backend/internal/services"
)

type CardSetHandler struct {
	sets services.CardSetService
}

func NewCardSetHandler(sets services.CardSetService) *CardSetHandler {
	return &CardSetHandler{sets: sets}
}

type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q pageQuery) request() types.PageRequest {
	return types.PageRequest{Page: q.Page, Limit: q.Limit}
}

type createCardSetRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

type updateCardSetRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

type addCardsRequest struct {
	CardIDs []string `json:"card_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// GET /api/card-sets
func (h *CardSetHandler) List(c *gin.Context) {
	var q pageQuery
	if err := bindQuery(c, &q); err != nil {
		response.RespondError(c, err)
		return
	}
	page, err := h.sets.List(requestDBC(c), requestUser(c), q.request())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// POST /api/card-sets
func (h *CardSetHandler) Create(c *gin.Context) {
	var req createCardSetRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	set, err := h.sets.Create(requestDBC(c), requestUser(c), services.CreateCardSetInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, set)
}

// GET /api/card-sets/:id
func (h *CardSetHandler) Get(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var q pageQuery
	if err := bindQuery(c, &q); err != nil {
		response.RespondError(c, err)
		return
	}
	detail, err := h.sets.Get(requestDBC(c), requestUser(c), id, q.request())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PUT /api/card-sets/:id
func (h *CardSetHandler) Update(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req updateCardSetRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	set, err := h.sets.Update(requestDBC(c), requestUser(c), id, services.UpdateCardSetInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, set)
}

// DELETE /api/card-sets/:id
func (h *CardSetHandler) Delete(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if err := h.sets.Delete(requestDBC(c), requestUser(c), id); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// GET /api/card-sets/:id/cards
func (h *CardSetHandler) ListCards(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var q pageQuery
	if err := bindQuery(c, &q); err != nil {
		response.RespondError(c, err)
		return
	}
	page, err := h.sets.ListCards(requestDBC(c), requestUser(c), id, q.request())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// POST /api/card-sets/:id/cards
func (h *CardSetHandler) AddCards(c *gin.Context) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var req addCardsRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, err)
		return
	}
	ids, err := parseUUIDs("card_ids", req.CardIDs)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	added, err := h.sets.AddCards(requestDBC(c), requestUser(c), id, ids)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"added_count": added})
}

// DELETE /api/card-sets/:id/cards/:cardId
func (h *CardSetHandler) RemoveCard(c *gin.Context) {
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
	deleted, err := h.sets.RemoveCard(requestDBC(c), requestUser(c), id, cardID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"card_deleted": deleted})
}
