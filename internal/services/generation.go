package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ratelimit"
)

const (
	generationNotFound = "generation not found"
	candidateNotFound  = "generated card not found"

	DefaultTargetCount = 10
	MaxTargetCount     = 50
	MaxSourceText      = 10000
)

type ProcessTextInput struct {
	Text        string
	TargetCount int
	SetID       *uuid.UUID
}

type ProcessTextResult struct {
	GenerationID         uuid.UUID              `json:"generation_id"`
	Status               types.GenerationStatus `json:"status"`
	EstimatedTimeSeconds int                    `json:"estimated_time_seconds"`
}

type GenerationStatusResult struct {
	Status   types.GenerationStatus `json:"status"`
	Progress int                    `json:"progress"`
	Error    string                 `json:"error,omitempty"`
}

type GenerationStats struct {
	TextLength       int   `json:"text_length"`
	GeneratedCount   int   `json:"generated_count"`
	GenerationTimeMS int64 `json:"generation_time_ms"`
}

type GenerationResults struct {
	Status types.GenerationStatus  `json:"status"`
	Cards  []*types.GeneratedCard  `json:"cards"`
	Stats  GenerationStats         `json:"stats"`
}

type AcceptCardInput struct {
	SetID        *uuid.UUID
	FrontContent *string
	BackContent  *string
}

type AcceptAllResult struct {
	AcceptedCount int         `json:"accepted_count"`
	CardIDs       []uuid.UUID `json:"card_ids"`
}

type FinalizeInput struct {
	Name          string
	Description   string
	AcceptedCards []uuid.UUID
}

type FinalizeResult struct {
	SetID     uuid.UUID `json:"set_id"`
	Name      string    `json:"name"`
	CardCount int       `json:"card_count"`
}

type GenerationService interface {
	ProcessText(dbc dbctx.Context, userID uuid.UUID, in ProcessTextInput) (*ProcessTextResult, error)
	List(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) (types.Page[*types.Generation], error)
	Status(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationStatusResult, error)
	Results(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationResults, error)
	AcceptCard(dbc dbctx.Context, userID, generationID, candidateID uuid.UUID, in AcceptCardInput) (*types.Card, error)
	RejectCard(dbc dbctx.Context, userID, generationID, candidateID uuid.UUID) error
	AcceptAll(dbc dbctx.Context, userID, generationID uuid.UUID, setID *uuid.UUID) (*AcceptAllResult, error)
	Finalize(dbc dbctx.Context, userID, generationID uuid.UUID, in FinalizeInput) (*FinalizeResult, error)
}

type GenerationServiceConfig struct {
	MinTextLength int
}

type generationService struct {
	log         *logger.Logger
	tx          db.TxRunner
	generations repos.GenerationRepo
	candidates  repos.GeneratedCardRepo
	cards       repos.CardRepo
	sets        repos.CardSetRepo
	links       repos.CardToSetRepo
	jobs        JobService
	limiter     ratelimit.Limiter
	cfg         GenerationServiceConfig
}

func NewGenerationService(
	baseLog *logger.Logger,
	tx db.TxRunner,
	generations repos.GenerationRepo,
	candidates repos.GeneratedCardRepo,
	cards repos.CardRepo,
	sets repos.CardSetRepo,
	links repos.CardToSetRepo,
	jobs JobService,
	limiter ratelimit.Limiter,
	cfg GenerationServiceConfig,
) GenerationService {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 100
	}
	return &generationService{
		log:         baseLog.With("service", "GenerationService"),
		tx:          tx,
		generations: generations,
		candidates:  candidates,
		cards:       cards,
		sets:        sets,
		links:       links,
		jobs:        jobs,
		limiter:     limiter,
		cfg:         cfg,
	}
}

func (s *generationService) getOwned(dbc dbctx.Context, userID, id uuid.UUID) (*types.Generation, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	g, err := s.generations.GetByIDForUser(dbc, userID, id)
	if err != nil {
		return nil, apierr.FromDB(err, generationNotFound)
	}
	return g, nil
}

func (s *generationService) ownedSet(dbc dbctx.Context, userID uuid.UUID, setID *uuid.UUID) error {
	if setID == nil || *setID == uuid.Nil {
		return nil
	}
	if _, err := s.sets.GetByIDForUser(dbc, userID, *setID); err != nil {
		return apierr.FromDB(err, cardSetNotFound)
	}
	return nil
}

func estimateSeconds(textLen, target int) int {
	return 5 + target/2 + textLen/2000
}

func (s *generationService) ProcessText(dbc dbctx.Context, userID uuid.UUID, in ProcessTextInput) (*ProcessTextResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Text)
	n := utf8.RuneCountInString(text)
	if n < s.cfg.MinTextLength || n > MaxSourceText {
		return nil, apierr.Validation(
			fmt.Sprintf("text must be between %d and %d characters", s.cfg.MinTextLength, MaxSourceText),
			map[string]any{"text": fmt.Sprintf("length %d out of range", n)},
		)
	}
	target := in.TargetCount
	if target == 0 {
		target = DefaultTargetCount
	}
	if target < 1 || target > MaxTargetCount {
		return nil, apierr.Validation(
			fmt.Sprintf("target_count must be between 1 and %d", MaxTargetCount),
			map[string]any{"target_count": "out of range"},
		)
	}

	if s.limiter != nil {
		d, err := s.limiter.Allow(dbc.Ctx, "process-text:"+userID.String())
		if err != nil {
			// Fail open when the limiter backend errors.
			s.log.Warn("Rate limiter unavailable", "error", err)
		} else if !d.Allowed {
			return nil, apierr.RateLimited(d.RetryAfterSeconds())
		}
	}

	sum := sha256.Sum256([]byte(text))
	g := &types.Generation{
		ID:               uuid.New(),
		UserID:           userID,
		SourceText:       text,
		SourceTextLength: n,
		SourceTextHash:   hex.EncodeToString(sum[:]),
		TargetCount:      target,
		Status:           types.GenerationPending,
	}
	if in.SetID != nil && *in.SetID != uuid.Nil {
		id := *in.SetID
		g.SetID = &id
	}

	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		if err := s.ownedSet(txc, userID, g.SetID); err != nil {
			return err
		}
		if err := s.generations.Create(txc, g); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		entityID := g.ID
		if _, err := s.jobs.Enqueue(txc, userID, types.JobTypeGenerationProcess, types.EntityTypeGeneration, &entityID, map[string]any{
			"generation_id": g.ID.String(),
		}); err != nil {
			return apierr.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	s.log.Info("Generation submitted", "generation_id", g.ID, "user_id", userID, "text_length", n, "target_count", target)
	return &ProcessTextResult{
		GenerationID:         g.ID,
		Status:               g.Status,
		EstimatedTimeSeconds: estimateSeconds(n, target),
	}, nil
}

func (s *generationService) List(dbc dbctx.Context, userID uuid.UUID, page types.PageRequest) (types.Page[*types.Generation], error) {
	if err := requireUser(userID); err != nil {
		return types.Page[*types.Generation]{}, err
	}
	rows, total, err := s.generations.ListForUser(dbc, userID, page)
	if err != nil {
		return types.Page[*types.Generation]{}, apierr.FromDB(err, generationNotFound)
	}
	return types.NewPage(rows, total, page), nil
}

func (s *generationService) Status(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationStatusResult, error) {
	g, err := s.getOwned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	out := &GenerationStatusResult{Status: g.Status}
	switch g.Status {
	case types.GenerationCompleted:
		out.Progress = 100
	case types.GenerationPending:
		out.Progress = 0
	default:
		job, err := s.jobs.GetLatestForEntity(dbc, userID, types.EntityTypeGeneration, g.ID, types.JobTypeGenerationProcess)
		if err != nil {
			return nil, apierr.FromDB(err, generationNotFound)
		}
		if job != nil {
			out.Progress = job.Progress
		}
		if g.Status == types.GenerationProcessing && out.Progress > 99 {
			out.Progress = 99
		}
	}
	if g.Status == types.GenerationFailed {
		out.Error = g.ErrorMessage
	}
	return out, nil
}

// Results tolerates generations that are not completed yet: it answers with
// the current status and no cards.
func (s *generationService) Results(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationResults, error) {
	g, err := s.getOwned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	out := &GenerationResults{
		Status: g.Status,
		Cards:  []*types.GeneratedCard{},
		Stats: GenerationStats{
			TextLength:       g.SourceTextLength,
			GeneratedCount:   g.GeneratedCount,
			GenerationTimeMS: g.GenerationTimeMS,
		},
	}
	if g.Status != types.GenerationCompleted {
		return out, nil
	}
	cards, err := s.candidates.ListByGeneration(dbc, g.ID)
	if err != nil {
		return nil, apierr.FromDB(err, generationNotFound)
	}
	out.Cards = cards
	return out, nil
}

func cardFromCandidate(userID uuid.UUID, c *types.GeneratedCard) *types.Card {
	score := c.ReadabilityScore
	genID := c.GenerationID
	return &types.Card{
		ID:               uuid.New(),
		UserID:           userID,
		FrontContent:     c.FrontContent,
		BackContent:      c.BackContent,
		SourceType:       types.CardSourceAI,
		ReadabilityScore: &score,
		GenerationID:     &genID,
	}
}

// AcceptCard copies a candidate into the user's cards. The candidate stays,
// so accepting it again creates another card.
func (s *generationService) AcceptCard(dbc dbctx.Context, userID, generationID, candidateID uuid.UUID, in AcceptCardInput) (*types.Card, error) {
	var card *types.Card
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		if _, err := s.getOwned(txc, userID, generationID); err != nil {
			return err
		}
		cand, err := s.candidates.GetByIDForGeneration(txc, generationID, candidateID)
		if err != nil {
			return apierr.FromDB(err, candidateNotFound)
		}
		if err := s.ownedSet(txc, userID, in.SetID); err != nil {
			return err
		}

		card = cardFromCandidate(userID, cand)
		if in.FrontContent != nil {
			card.FrontContent = strings.TrimSpace(*in.FrontContent)
		}
		if in.BackContent != nil {
			card.BackContent = strings.TrimSpace(*in.BackContent)
		}
		if card.FrontContent == "" || card.BackContent == "" {
			return apierr.Validation("card content cannot be empty", nil)
		}
		delta := repos.CounterDelta{AcceptedUnedited: 1}
		if card.FrontContent != cand.FrontContent || card.BackContent != cand.BackContent {
			card.SourceType = types.CardSourceAIEdited
			score := flashcards.Readability(card.FrontContent, card.BackContent)
			card.ReadabilityScore = &score
			delta = repos.CounterDelta{AcceptedEdited: 1}
		}

		if err := s.cards.Create(txc, []*types.Card{card}); err != nil {
			return apierr.FromDB(err, candidateNotFound)
		}
		if in.SetID != nil && *in.SetID != uuid.Nil {
			if _, err := s.links.Link(txc, *in.SetID, []uuid.UUID{card.ID}); err != nil {
				return apierr.FromDB(err, cardSetNotFound)
			}
		}
		if err := s.generations.IncrementCounters(txc, generationID, delta); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	return card, nil
}

// RejectCard deletes the candidate for good.
func (s *generationService) RejectCard(dbc dbctx.Context, userID, generationID, candidateID uuid.UUID) error {
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		if _, err := s.getOwned(txc, userID, generationID); err != nil {
			return err
		}
		deleted, err := s.candidates.Delete(txc, generationID, candidateID)
		if err != nil {
			return apierr.FromDB(err, candidateNotFound)
		}
		if !deleted {
			return apierr.NotFound(candidateNotFound)
		}
		if err := s.generations.IncrementCounters(txc, generationID, repos.CounterDelta{Rejected: 1}); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		return nil
	})
	if err != nil {
		return apierr.From(err)
	}
	return nil
}

func notReady(g *types.Generation) error {
	return &apierr.Error{
		Status:  http.StatusBadRequest,
		Code:    apierr.CodeValidation,
		Message: "generation is not ready for review",
		Details: map[string]any{"status": string(g.Status)},
	}
}

// AcceptAll turns every remaining candidate into a card in one transaction.
func (s *generationService) AcceptAll(dbc dbctx.Context, userID, generationID uuid.UUID, setID *uuid.UUID) (*AcceptAllResult, error) {
	out := &AcceptAllResult{CardIDs: []uuid.UUID{}}
	err := s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		g, err := s.getOwned(txc, userID, generationID)
		if err != nil {
			return err
		}
		if g.Status != types.GenerationCompleted {
			return notReady(g)
		}
		if err := s.ownedSet(txc, userID, setID); err != nil {
			return err
		}
		cands, err := s.candidates.ListByGeneration(txc, generationID)
		if err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		if len(cands) == 0 {
			return nil
		}
		cards := make([]*types.Card, 0, len(cands))
		for _, c := range cands {
			card := cardFromCandidate(userID, c)
			cards = append(cards, card)
			out.CardIDs = append(out.CardIDs, card.ID)
		}
		if err := s.cards.Create(txc, cards); err != nil {
			return apierr.FromDB(err, candidateNotFound)
		}
		if setID != nil && *setID != uuid.Nil {
			if _, err := s.links.Link(txc, *setID, out.CardIDs); err != nil {
				return apierr.FromDB(err, cardSetNotFound)
			}
		}
		if err := s.generations.IncrementCounters(txc, generationID, repos.CounterDelta{AcceptedUnedited: len(cards)}); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		out.AcceptedCount = len(cards)
		return nil
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	return out, nil
}

// Finalize validates every accepted id and creates the set, the cards and
// their links and updates the generation in one transaction. Nothing is
// written when any id is invalid.
func (s *generationService) Finalize(dbc dbctx.Context, userID, generationID uuid.UUID, in FinalizeInput) (*FinalizeResult, error) {
	if len(in.AcceptedCards) == 0 {
		return nil, apierr.Validation("accepted_cards must not be empty", map[string]any{"accepted_cards": "required"})
	}
	g, err := s.getOwned(dbc, userID, generationID)
	if err != nil {
		return nil, err
	}
	if g.Status != types.GenerationCompleted {
		return nil, notReady(g)
	}

	set, err := newCardSet(userID, in.Name, in.Description)
	if err != nil {
		return nil, err
	}
	ids := dedupeIDs(in.AcceptedCards)
	var cands []*types.GeneratedCard
	err = s.tx.InTx(dbc.Ctx, func(txc dbctx.Context) error {
		var err error
		cands, err = s.candidates.GetByIDsForGeneration(txc, generationID, ids)
		if err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		if invalid := missingCandidateIDs(ids, cands); len(invalid) > 0 {
			return apierr.InvalidCards(invalid)
		}
		if err := s.sets.Create(txc, set); err != nil {
			return setDBError(err, set.Name)
		}
		cards := make([]*types.Card, 0, len(cands))
		cardIDs := make([]uuid.UUID, 0, len(cands))
		for _, c := range cands {
			card := cardFromCandidate(userID, c)
			cards = append(cards, card)
			cardIDs = append(cardIDs, card.ID)
		}
		if err := s.cards.Create(txc, cards); err != nil {
			return apierr.FromDB(err, candidateNotFound)
		}
		if _, err := s.links.Link(txc, set.ID, cardIDs); err != nil {
			return apierr.FromDB(err, cardSetNotFound)
		}
		if err := s.generations.IncrementCounters(txc, generationID, repos.CounterDelta{AcceptedUnedited: len(cards)}); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		if err := s.generations.UpdateFields(txc, generationID, map[string]interface{}{"set_id": set.ID}); err != nil {
			return apierr.FromDB(err, generationNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.From(err)
	}
	s.log.Info("Generation finalized", "generation_id", generationID, "set_id", set.ID, "card_count", len(cands))
	return &FinalizeResult{SetID: set.ID, Name: set.Name, CardCount: len(cands)}, nil
}

// missingCandidateIDs lists the ids that have no matching candidate.
func missingCandidateIDs(ids []uuid.UUID, cands []*types.GeneratedCard) []string {
	if len(cands) == len(ids) {
		return nil
	}
	found := make(map[uuid.UUID]struct{}, len(cands))
	for _, c := range cands {
		found[c.ID] = struct{}{}
	}
	invalid := make([]string, 0, len(ids)-len(cands))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			invalid = append(invalid, id.String())
		}
	}
	return invalid
}

func dedupeIDs(in []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(in))
	seen := make(map[uuid.UUID]struct{}, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
