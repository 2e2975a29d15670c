package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

const cardNotFound = "card not found"

type CreateCardInput struct {
	FrontContent string
	BackContent  string
}

// UpdateCardInput leaves nil fields untouched.
type UpdateCardInput struct {
	FrontContent *string
	BackContent  *string
}

type CardService interface {
	List(dbc dbctx.Context, userID uuid.UUID, filter repos.CardFilter, page types.PageRequest) (types.Page[*types.Card], error)
	Get(dbc dbctx.Context, userID, id uuid.UUID) (*types.Card, error)
	Create(dbc dbctx.Context, userID uuid.UUID, in CreateCardInput) (*types.Card, error)
	Update(dbc dbctx.Context, userID, id uuid.UUID, in UpdateCardInput) (*types.Card, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
}

type cardService struct {
	log   *logger.Logger
	cards repos.CardRepo
}

func NewCardService(baseLog *logger.Logger, cards repos.CardRepo) CardService {
	return &cardService{
		log:   baseLog.With("service", "CardService"),
		cards: cards,
	}
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return apierr.Unauthorized("authentication required")
	}
	return nil
}

func (s *cardService) List(dbc dbctx.Context, userID uuid.UUID, filter repos.CardFilter, page types.PageRequest) (types.Page[*types.Card], error) {
	if err := requireUser(userID); err != nil {
		return types.Page[*types.Card]{}, err
	}
	rows, total, err := s.cards.ListForUser(dbc, userID, filter, page)
	if err != nil {
		return types.Page[*types.Card]{}, apierr.FromDB(err, cardNotFound)
	}
	return types.NewPage(rows, total, page), nil
}

func (s *cardService) Get(dbc dbctx.Context, userID, id uuid.UUID) (*types.Card, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByIDForUser(dbc, userID, id)
	if err != nil {
		return nil, apierr.FromDB(err, cardNotFound)
	}
	return card, nil
}

func (s *cardService) Create(dbc dbctx.Context, userID uuid.UUID, in CreateCardInput) (*types.Card, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	front := strings.TrimSpace(in.FrontContent)
	back := strings.TrimSpace(in.BackContent)
	if front == "" || back == "" {
		return nil, apierr.Validation("front_content and back_content are required", map[string]any{
			"front_content": "required",
			"back_content":  "required",
		})
	}
	card := &types.Card{
		ID:           uuid.New(),
		UserID:       userID,
		FrontContent: front,
		BackContent:  back,
		SourceType:   types.CardSourceManual,
	}
	if err := s.cards.Create(dbc, []*types.Card{card}); err != nil {
		return nil, apierr.FromDB(err, cardNotFound)
	}
	return card, nil
}

// Update edits content. An AI card whose content changes becomes ai_edited.
func (s *cardService) Update(dbc dbctx.Context, userID, id uuid.UUID, in UpdateCardInput) (*types.Card, error) {
	card, err := s.Get(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	front, back := card.FrontContent, card.BackContent
	if in.FrontContent != nil {
		front = strings.TrimSpace(*in.FrontContent)
	}
	if in.BackContent != nil {
		back = strings.TrimSpace(*in.BackContent)
	}
	if front == "" || back == "" {
		return nil, apierr.Validation("card content cannot be empty", nil)
	}
	if front == card.FrontContent && back == card.BackContent {
		return card, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"front_content": front,
		"back_content":  back,
		"updated_at":    now,
	}
	if card.SourceType == types.CardSourceAI {
		updates["source_type"] = types.CardSourceAIEdited
		card.SourceType = types.CardSourceAIEdited
	}
	if card.ReadabilityScore != nil {
		score := flashcards.Readability(front, back)
		updates["readability_score"] = score
		card.ReadabilityScore = &score
	}
	if err := s.cards.UpdateFields(dbc, userID, id, updates); err != nil {
		return nil, apierr.FromDB(err, cardNotFound)
	}
	card.FrontContent = front
	card.BackContent = back
	card.UpdatedAt = now
	return card, nil
}

func (s *cardService) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.cards.SoftDelete(dbc, userID, id); err != nil {
		return apierr.FromDB(err, cardNotFound)
	}
	return nil
}
