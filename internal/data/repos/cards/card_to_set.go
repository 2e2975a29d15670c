package cards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type CardToSetRepo interface {
	Link(dbc dbctx.Context, setID uuid.UUID, cardIDs []uuid.UUID) (int64, error)
	Unlink(dbc dbctx.Context, setID, cardID uuid.UUID) (bool, error)
	CountLiveSetsForCard(dbc dbctx.Context, cardID uuid.UUID) (int64, error)
}

type cardToSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardToSetRepo(db *gorm.DB, baseLog *logger.Logger) CardToSetRepo {
	return &cardToSetRepo{db: db, log: baseLog.With("repo", "CardToSetRepo")}
}

// Link is idempotent: existing memberships are skipped and not counted.
func (r *cardToSetRepo) Link(dbc dbctx.Context, setID uuid.UUID, cardIDs []uuid.UUID) (int64, error) {
	if len(cardIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]*types.CardToSet, 0, len(cardIDs))
	seen := make(map[uuid.UUID]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, &types.CardToSet{CardID: id, SetID: setID, CreatedAt: now})
	}
	res := dbc.Resolve(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *cardToSetRepo) Unlink(dbc dbctx.Context, setID, cardID uuid.UUID) (bool, error) {
	res := dbc.Resolve(r.db).
		Where("set_id = ? AND card_id = ?", setID, cardID).
		Delete(&types.CardToSet{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountLiveSetsForCard ignores links to soft-deleted sets.
func (r *cardToSetRepo) CountLiveSetsForCard(dbc dbctx.Context, cardID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Resolve(r.db).
		Model(&types.CardToSet{}).
		Joins("JOIN card_set ON card_set.id = card_to_set.set_id").
		Where("card_to_set.card_id = ? AND card_set.is_deleted = ?", cardID, false).
		Count(&n).Error
	return n, err
}
