package generation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type GeneratedCardRepo interface {
	Create(dbc dbctx.Context, cards []*types.GeneratedCard) error
	ListByGeneration(dbc dbctx.Context, generationID uuid.UUID) ([]*types.GeneratedCard, error)
	GetByIDForGeneration(dbc dbctx.Context, generationID, id uuid.UUID) (*types.GeneratedCard, error)
	GetByIDsForGeneration(dbc dbctx.Context, generationID uuid.UUID, ids []uuid.UUID) ([]*types.GeneratedCard, error)
	Delete(dbc dbctx.Context, generationID, id uuid.UUID) (bool, error)
}

type generatedCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedCardRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedCardRepo {
	return &generatedCardRepo{db: db, log: baseLog.With("repo", "GeneratedCardRepo")}
}

func (r *generatedCardRepo) Create(dbc dbctx.Context, cards []*types.GeneratedCard) error {
	if len(cards) == 0 {
		return nil
	}
	return dbc.Resolve(r.db).Create(&cards).Error
}

func (r *generatedCardRepo) ListByGeneration(dbc dbctx.Context, generationID uuid.UUID) ([]*types.GeneratedCard, error) {
	out := []*types.GeneratedCard{}
	err := dbc.Resolve(r.db).
		Where("generation_id = ?", generationID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generatedCardRepo) GetByIDForGeneration(dbc dbctx.Context, generationID, id uuid.UUID) (*types.GeneratedCard, error) {
	var c types.GeneratedCard
	err := dbc.Resolve(r.db).
		Where("id = ? AND generation_id = ?", id, generationID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByIDsForGeneration returns candidates in ids order. Ids that are not
// candidates of generationID are dropped.
func (r *generatedCardRepo) GetByIDsForGeneration(dbc dbctx.Context, generationID uuid.UUID, ids []uuid.UUID) ([]*types.GeneratedCard, error) {
	out := []*types.GeneratedCard{}
	if len(ids) == 0 {
		return out, nil
	}
	q := dbc.Resolve(r.db)
	if dbc.Tx != nil {
		// Hold the rows so a concurrent reject waits for the transaction.
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []*types.GeneratedCard
	err := q.Where("generation_id = ? AND id IN ?", generationID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.GeneratedCard, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *generatedCardRepo) Delete(dbc dbctx.Context, generationID, id uuid.UUID) (bool, error) {
	res := dbc.Resolve(r.db).
		Where("id = ? AND generation_id = ?", id, generationID).
		Delete(&types.GeneratedCard{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
