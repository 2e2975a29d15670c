package cards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type CardSetRepo interface {
	Create(dbc dbctx.Context, set *types.CardSet) error
	GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.CardSet, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) ([]*types.CardSet, int64, error)
	UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, userID, id uuid.UUID) error
	CountCards(dbc dbctx.Context, setIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type cardSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardSetRepo(db *gorm.DB, baseLog *logger.Logger) CardSetRepo {
	return &cardSetRepo{db: db, log: baseLog.With("repo", "CardSetRepo")}
}

func liveSets(tx *gorm.DB) *gorm.DB {
	return tx.Where("card_set.is_deleted = ?", false)
}

func (r *cardSetRepo) Create(dbc dbctx.Context, set *types.CardSet) error {
	if set == nil {
		return nil
	}
	return dbc.Resolve(r.db).Create(set).Error
}

func (r *cardSetRepo) GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.CardSet, error) {
	var set types.CardSet
	err := dbc.Resolve(r.db).
		Scopes(liveSets).
		Where("card_set.id = ? AND card_set.user_id = ?", id, userID).
		First(&set).Error
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// ListForUser fills CardCount on every returned set.
func (r *cardSetRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) ([]*types.CardSet, int64, error) {
	page = page.Normalize()
	q := dbc.Resolve(r.db).
		Model(&types.CardSet{}).
		Scopes(liveSets).
		Where("card_set.user_id = ?", userID)

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*types.CardSet{}
	if total == 0 {
		return out, 0, nil
	}
	if err := q.Order("card_set.created_at DESC").
		Order("card_set.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	counts, err := r.CountCards(dbc, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range out {
		s.CardCount = counts[s.ID]
	}
	return out, total, nil
}

func (r *cardSetRepo) UpdateFields(dbc dbctx.Context, userID, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.Resolve(r.db).
		Model(&types.CardSet{}).
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

// SoftDelete hides the set. Member cards and links are left alone.
func (r *cardSetRepo) SoftDelete(dbc dbctx.Context, userID, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.UpdateFields(dbc, userID, id, map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now,
		"updated_at": now,
	})
}

// CountCards counts live cards per set. Sets without cards are absent.
func (r *cardSetRepo) CountCards(dbc dbctx.Context, setIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(setIDs))
	if len(setIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		SetID uuid.UUID
		N     int64
	}
	err := dbc.Resolve(r.db).
		Table("card_to_set").
		Select("card_to_set.set_id AS set_id, COUNT(*) AS n").
		Joins("JOIN card ON card.id = card_to_set.card_id").
		Where("card_to_set.set_id IN ? AND card.is_deleted = ?", setIDs, false).
		Group("card_to_set.set_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SetID] = row.N
	}
	return out, nil
}
