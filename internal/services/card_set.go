package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

const cardSetNotFound = "card set not found"

type CreateCardSetInput struct {
	Name        string
	Description string
}

type UpdateCardSetInput struct {
	Name        *string
	Description *string
}

// CardSetDetail is a set together with one page of its cards.
type CardSetDetail struct {
	*types.CardSet
	Cards types.Page[*types.Card] `json:"cards"`
}

type CardSetService interface {
	List(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) (types.Page[*types.CardSet], error)
	Get(dbc dbctx.Context, userID, id uuid.UUID, page types.PageRequest) (*CardSetDetail, error)
	Create(dbc dbctx.Context, userID uuid.UUID, in CreateCardSetInput) (*types.CardSet, error)
	Update(dbc dbctx.Context, userID, id uuid.UUID, in UpdateCardSetInput) (*types.CardSet, error)
	Delete(dbc dbctx.Context, userID, id uuid.UUID) error
	ListCards(dbc dbctx.Context, userID, setID uuid.UUID, page types.PageRequest) (types.Page[*types.Card], error)
	AddCards(dbc dbctx.Context, userID, setID uuid.UUID, cardIDs []uuid.UUID) (int64, error)
	RemoveCard(dbc dbctx.Context, userID, setID, cardID uuid.UUID) (bool, error)
}

type cardSetService struct {
	log   *logger.Logger
	tx    db.TxRunner
	sets  repos.CardSetRepo
	cards repos.CardRepo
	links repos.CardToSetRepo
}

func NewCardSetService(
	baseLog *logger.Logger,
	tx db.TxRunner,
	sets repos.CardSetRepo,
	cards repos.CardRepo,
	links repos.CardToSetRepo,
) CardSetService {
	return &cardSetService{
		log:   baseLog.With("service", "CardSetService"),
		tx:    tx,
		sets:  sets,
		cards: cards,
		links: links,
	}
}

// setDBError gives duplicate names a message the user can act on.
func setDBError(err error, name string) error {
	ae := apierr.FromDB(err, cardSetNotFound)
	if ae != nil && ae.Code == apierr.CodeDuplicateEntry {
		return apierr.Duplicate(fmt.Sprintf("a card set named %q already exists", name))
	}
	return ae
}

func (s *cardSetService) List(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) (types.Page[*types.CardSet], error) {
	if err := requireUser(userID); err != nil {
		return types.Page[*types.CardSet]{}, err
	}
	rows, total, err := s.sets.ListForUser(dbc, userID, page)
	if err != nil {
		return types.Page[*types.CardSet]{}, apierr.FromDB(err, cardSetNotFound)
	}
	return types.NewPage(rows, total, page), nil
}

func (s *cardSetService) getOwned(dbc dbctx.Context, userID, id uuid.UUID) (*types.CardSet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	set, err := s.sets.GetByIDForUser(dbc, userID, id)
	if err != nil {
		return nil, apierr.FromDB(err, cardSetNotFound)
	}
	return set, nil
}

func (s *cardSetService) Get(dbc dbctx.Context, userID, id uuid.UUID, page types.PageRequest) (*CardSetDetail, error) {
	set, err := s.getOwned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	cards, total, err := s.cards.ListInSet(dbc, id, page)
	if err != nil {
		return nil, apierr.FromDB(err, cardSetNotFound)
	}
	set.CardCount = total
	return &CardSetDetail{CardSet: set, Cards: types.NewPage(cards, total, page)}, nil
}

func newCardSet(userID uuid.UUID, name, description string) (*types.CardSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.Validation("name is required", map[string]any{"name": "required"})
	}
	return &types.CardSet{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(description),
	}, nil
}

func (s *cardSetService) Create(dbc dbctx.Context, userID uuid.UUID, in CreateCardSetInput) (*types.CardSet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	set, err := newCardSet(userID, in.Name, in.Description)
	if err != nil {
		return nil, err
	}
	if err := s.sets.Create(dbc, set); err != nil {
		return nil, setDBError(err, set.Name)
	}
	return set, nil
}

func (s *cardSetService) Update(dbc dbctx.Context, userID, id uuid.UUID, in UpdateCardSetInput) (*types.CardSet, error) {
	set, err := s.getOwned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.Validation("name cannot be empty", map[string]any{"name": "required"})
		}
		if name != set.Name {
			updates["name"] = name
			updates["slug"] = slug.Make(name)
		}
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc != set.Description {
			updates["description"] = desc
		}
	}
	if len(updates) == 0 {
		return set, nil
	}
	now := time.Now().UTC()
	updates["updated_at"] = now
	if err := s.sets.UpdateFields(dbc, userID, id, updates); err != nil {
		name := set.Name
		if in.Name != nil {
			name = strings.TrimSpace(*in.Name)
		}
		return nil, setDBError(err, name)
	}
	if v, ok := updates["name"].(string); ok {
		set.Name = v
		set.Slug = updates["slug"].(string)
	}
	if v, ok := updates["description"].(string); ok {
		set.Description = v
	}
	set.UpdatedAt = now
	return set, nil
}

// Delete hides the set only. Its cards stay in the user's collection.
func (s *cardSetService) Delete(dbc dbctx.Context, userID, id uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.sets.SoftDelete(dbc, userID, id); err != nil {
		return apierr.FromDB(err, cardSetNotFound)
	}
	return nil
}

func (s *cardSetService) ListCards(dbc dbctx.Context, userID, setID uuid.UUID, page types.PageRequest) (types.Page[*types.Card], error) {
	if _, err := s.getOwned(dbc, userID, setID); err != nil {
		return types.Page[*types.Card]{}, err
	}
	cards, total, err := s.cards.ListInSet(dbc, setID, page)
	if err != nil {
		return types.Page[*types.Card]{}, apierr.FromDB(err, cardSetNotFound)
	}
	return types.NewPage(cards, total, page), nil
}

// AddCards links owned cards to the set. Cards already in the set are
// skipped; any id that is not a live card of the user fails the whole call.
func (s *cardSetService) AddCards(dbc dbctx.Context, userID, setID uuid.UUID, cardIDs []uuid.UUID) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, apierr.Validation("card_ids is required", map[string]any{"card_ids": "required"})
	}
	var added int64
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		if _, err := s.getOwned(txc, userID, setID); err != nil {
			return err
		}
		owned, err := s.cards.GetByIDsForUser(txc, userID, cardIDs)
		if err != nil {
			return apierr.FromDB(err, cardNotFound)
		}
		if missing := missingIDs(cardIDs, owned); len(missing) > 0 {
			e := apierr.NotFound("one or more cards were not found")
			e.Details = map[string]any{"missing_ids": missing}
			return e
		}
		n, err := s.links.Link(txc, setID, cardIDs)
		if err != nil {
			return apierr.FromDB(err, cardSetNotFound)
		}
		added = n
		return nil
	})
	if err != nil {
		return 0, apierr.From(err)
	}
	return added, nil
}

func missingIDs(want []uuid.UUID, have []*types.Card) []string {
	got := make(map[uuid.UUID]struct{}, len(have))
	for _, c := range have {
		got[c.ID] = struct{}{}
	}
	var out []string
	for _, id := range want {
		if _, ok := got[id]; !ok {
			out = append(out, id.String())
		}
	}
	return out
}

// RemoveCard unlinks the card and soft-deletes it when no other live set
// still holds it. It reports whether the card was deleted.
func (s *cardSetService) RemoveCard(dbc dbctx.Context, userID, setID, cardID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		if _, err := s.getOwned(txc, userID, setID); err != nil {
			return err
		}
		if _, err := s.cards.GetByIDForUser(txc, userID, cardID); err != nil {
			return apierr.FromDB(err, cardNotFound)
		}
		removed, err := s.links.Unlink(txc, setID, cardID)
		if err != nil {
			return apierr.FromDB(err, cardNotFound)
		}
		if !removed {
			return apierr.NotFound("card is not in this set")
		}
		remaining, err := s.links.CountLiveSetsForCard(txc, cardID)
		if err != nil {
			return apierr.FromDB(err, cardNotFound)
		}
		if remaining > 0 {
			return nil
		}
		if err := s.cards.SoftDelete(txc, userID, cardID); err != nil {
			return apierr.FromDB(err, cardNotFound)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, apierr.From(err)
	}
	if deleted {
		s.log.Debug("Card removed with its last set", "card_id", cardID, "set_id", setID)
	}
	return deleted, nil
}
