package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedCard(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, front string) *types.Card {
	tb.Helper()
	c := &types.Card{
		ID:           uuid.New(),
		UserID:       userID,
		FrontContent: front,
		BackContent:  "back of " + front,
		SourceType:   types.CardSourceManual,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed card: %v", err)
	}
	return c
}

func SeedCards(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, n int) []*types.Card {
	tb.Helper()
	out := make([]*types.Card, 0, n)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		c := &types.Card{
			ID:           uuid.New(),
			UserID:       userID,
			FrontContent: fmt.Sprintf("front %02d", i),
			BackContent:  fmt.Sprintf("back %02d", i),
			SourceType:   types.CardSourceManual,
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			tb.Fatalf("seed card %d: %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func SeedCardSet(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) *types.CardSet {
	tb.Helper()
	s := &types.CardSet{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Slug:   name,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed card set: %v", err)
	}
	return s
}

func SeedLink(tb testing.TB, ctx context.Context, tx *gorm.DB, cardID, setID uuid.UUID) {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(&types.CardToSet{CardID: cardID, SetID: setID}).Error; err != nil {
		tb.Fatalf("seed link: %v", err)
	}
}

func SeedGeneration(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, status types.GenerationStatus) *types.Generation {
	tb.Helper()
	g := &types.Generation{
		ID:               uuid.New(),
		UserID:           userID,
		SourceText:       "source",
		SourceTextLength: 6,
		SourceTextHash:   "hash",
		TargetCount:      5,
		Status:           status,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed generation: %v", err)
	}
	return g
}

func SeedGeneratedCards(tb testing.TB, ctx context.Context, tx *gorm.DB, generationID uuid.UUID, n int) []*types.GeneratedCard {
	tb.Helper()
	out := make([]*types.GeneratedCard, 0, n)
	for i := 0; i < n; i++ {
		c := &types.GeneratedCard{
			ID:               uuid.New(),
			GenerationID:     generationID,
			FrontContent:     fmt.Sprintf("Question %d?", i+1),
			BackContent:      fmt.Sprintf("Answer %d.", i+1),
			ReadabilityScore: 0.5,
			Position:         i,
		}
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			tb.Fatalf("seed generated card %d: %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
