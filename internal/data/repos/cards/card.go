package cards

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

// CardFilter narrows ListForUser. Zero values mean "no filter".
type CardFilter struct {
	SourceType types.CardSourceType
	Query      string
}

type CardRepo interface {
	Create(dbc dbctx.Context, cards []*types.Card) error
	GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Card, error)
	GetByIDsForUser(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.Card, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, filter CardFilter, page types.PageRequest) ([]*types.Card, int64, error)
	ListInSet(dbc dbctx.Context, setID uuid.UUID, page types.PageRequest) ([]*types.Card, int64, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, userID, id uuid.UUID) error
}

type cardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo {
	return &cardRepo{db: db, log: baseLog.With("repo", "CardRepo")}
}

func liveCards(tx *gorm.DB) *gorm.DB {
	return tx.Where("card.is_deleted = ?", false)
}

func (r *cardRepo) Create(dbc dbctx.Context, cards []*types.Card) error {
	if len(cards) == 0 {
		return nil
	}
	return dbc.Resolve(r.db).Create(&cards).Error
}

func (r *cardRepo) GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Card, error) {
	var card types.Card
	err := dbc.Resolve(r.db).
		Scopes(liveCards).
		Where("card.id = ? AND card.user_id = ?", id, userID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// GetByIDsForUser returns the live cards among ids that belong to userID.
// Missing or foreign ids are silently dropped.
func (r *cardRepo) GetByIDsForUser(dbc dbctx.Context, userID uuid.UUID, ids []uuid.UUID) ([]*types.Card, error) {
	out := []*types.Card{}
	if len(ids) == 0 {
		return out, nil
	}
	err := dbc.Resolve(r.db).
		Scopes(liveCards).
		Where("card.user_id = ? AND card.id IN ?", userID, ids).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, filter CardFilter, page types.PageRequest) ([]*types.Card, int64, error) {
	page = page.Normalize()
	q := dbc.Resolve(r.db).
		Model(&types.Card{}).
		Scopes(liveCards).
		Where("card.user_id = ?", userID)
	if filter.SourceType != "" {
		q = q.Where("card.source_type = ?", filter.SourceType)
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(card.front_content) LIKE ? OR LOWER(card.back_content) LIKE ?)", like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*types.Card{}
	if total == 0 {
		return out, 0, nil
	}
	err := q.Order("card.created_at DESC").
		Order("card.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListInSet pages through the live cards linked to setID. Ownership of the
// set is checked by the caller.
func (r *cardRepo) ListInSet(dbc dbctx.Context, setID uuid.UUID, page types.PageRequest) ([]*types.Card, int64, error) {
	page = page.Normalize()
	q := dbc.Resolve(r.db).
		Model(&types.Card{}).
		Joins("JOIN card_to_set ON card_to_set.card_id = card.id").
		Scopes(liveCards).
		Where("card_to_set.set_id = ?", setID)

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*types.Card{}
	if total == 0 {
		return out, 0, nil
	}
	err := q.Select("card.*").
		Order("card_to_set.created_at DESC").
		Order("card.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateFields returns gorm.ErrRecordNotFound when no live card matched.
func (r *cardRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.Resolve(r.db).
		Model(&types.Card{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cardRepo) SoftDelete(dbc dbctx.Context, userID, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.UpdateFields(dbc, userID, id, map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now,
		"updated_at": now,
	})
}
