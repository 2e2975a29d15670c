package generation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

// CounterDelta is added to a generation's review counters in one statement.
type CounterDelta struct {
	AcceptedEdited   int
	AcceptedUnedited int
	Rejected         int
}

func (d CounterDelta) empty() bool {
	return d.AcceptedEdited == 0 && d.AcceptedUnedited == 0 && d.Rejected == 0
}

type GenerationRepo interface {
	Create(dbc dbctx.Context, g *types.Generation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Generation, error)
	GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Generation, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) ([]*types.Generation, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []types.GenerationStatus, updates map[string]interface{}) (bool, error)
	IncrementCounters(dbc dbctx.Context, id uuid.UUID, delta CounterDelta) error
}

type generationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRepo {
	return &generationRepo{db: db, log: baseLog.With("repo", "GenerationRepo")}
}

func (r *generationRepo) Create(dbc dbctx.Context, g *types.Generation) error {
	if g == nil {
		return nil
	}
	return dbc.Resolve(r.db).Create(g).Error
}

func (r *generationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Generation, error) {
	var g types.Generation
	if err := dbc.Resolve(r.db).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *generationRepo) GetByIDForUser(dbc dbctx.Context, userID, id uuid.UUID) (*types.Generation, error) {
	var g types.Generation
	err := dbc.Resolve(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *generationRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) ([]*types.Generation, int64, error) {
	page = page.Normalize()
	q := dbc.Resolve(r.db).
		Model(&types.Generation{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*types.Generation{}
	if total == 0 {
		return out, 0, nil
	}
	if err := q.Omit("source_text").
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *generationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.Resolve(r.db).
		Model(&types.Generation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateFieldsIfStatus applies updates only while the generation is in one of
// the allowed statuses. It reports whether the row changed.
func (r *generationRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []types.GenerationStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	q := dbc.Resolve(r.db).Model(&types.Generation{}).Where("id = ?", id)
	if len(allowed) > 0 {
		q = q.Where("status IN ?", allowed)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementCounters adds delta with col = col + n so concurrent reviews of the
// same generation never lose updates.
func (r *generationRepo) IncrementCounters(dbc dbctx.Context, id uuid.UUID, delta CounterDelta) error {
	if delta.empty() {
		return nil
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if delta.AcceptedEdited != 0 {
		updates["accepted_edited_count"] = gorm.Expr("accepted_edited_count + ?", delta.AcceptedEdited)
	}
	if delta.AcceptedUnedited != 0 {
		updates["accepted_unedited_count"] = gorm.Expr("accepted_unedited_count + ?", delta.AcceptedUnedited)
	}
	if delta.Rejected != 0 {
		updates["rejected_count"] = gorm.Expr("rejected_count + ?", delta.Rejected)
	}
	res := dbc.Resolve(r.db).
		Model(&types.Generation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
