package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos/testutil"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
)

func TestCardSetCreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()

	set, err := env.sets.Create(env.dbc, user, CreateCardSetInput{Name: "Cell Biology", Description: "intro"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if set.Slug != "cell-biology" {
		t.Fatalf("slug: %q", set.Slug)
	}

	_, err = env.sets.Create(env.dbc, user, CreateCardSetInput{Name: "Cell Biology"})
	wantCode(t, err, apierr.CodeDuplicateEntry)

	if _, err := env.sets.Create(env.dbc, newUser(), CreateCardSetInput{Name: "Cell Biology"}); err != nil {
		t.Fatalf("names are unique per user only: %v", err)
	}

	upd, err := env.sets.Update(env.dbc, user, set.ID, UpdateCardSetInput{Name: strPtr("Genetics")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Name != "Genetics" || upd.Slug != "genetics" || upd.Description != "intro" {
		t.Fatalf("unexpected update: %+v", upd)
	}

	_, err = env.sets.Create(env.dbc, user, CreateCardSetInput{Name: "  "})
	wantCode(t, err, apierr.CodeValidation)

	if err := env.sets.Delete(env.dbc, user, set.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = env.sets.Get(env.dbc, user, set.ID, types.PageRequest{})
	wantCode(t, err, apierr.CodeNotFound)

	if _, err := env.sets.Create(env.dbc, user, CreateCardSetInput{Name: "Genetics"}); err != nil {
		t.Fatalf("deleted set names are free again: %v", err)
	}
}

func TestCardSetOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, other := newUser(), newUser()
	set := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, owner, "Mine")

	_, err := env.sets.Get(env.dbc, other, set.ID, types.PageRequest{})
	wantCode(t, err, apierr.CodeNotFound)
	_, err = env.sets.Update(env.dbc, other, set.ID, UpdateCardSetInput{Name: strPtr("Stolen")})
	wantCode(t, err, apierr.CodeNotFound)
	wantCode(t, env.sets.Delete(env.dbc, other, set.ID), apierr.CodeNotFound)

	foreign := testutil.SeedCard(t, env.dbc.Ctx, env.db, other, "theirs")
	_, err = env.sets.AddCards(env.dbc, owner, set.ID, []uuid.UUID{foreign.ID})
	ae := wantCode(t, err, apierr.CodeNotFound)
	if ids, _ := ae.Details["missing_ids"].([]string); len(ids) != 1 || ids[0] != foreign.ID.String() {
		t.Fatalf("missing_ids: %v", ae.Details)
	}
}

func TestCardSetAddCardsAndPagination(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	set := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, user, "Deck")
	cards := testutil.SeedCards(t, env.dbc.Ctx, env.db, user, 15)

	ids := make([]uuid.UUID, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	added, err := env.sets.AddCards(env.dbc, user, set.ID, ids)
	if err != nil {
		t.Fatalf("AddCards: %v", err)
	}
	if added != 15 {
		t.Fatalf("added: want=15 got=%d", added)
	}
	again, err := env.sets.AddCards(env.dbc, user, set.ID, ids[:3])
	if err != nil {
		t.Fatalf("AddCards again: %v", err)
	}
	if again != 0 {
		t.Fatalf("re-adding linked cards adds nothing, got %d", again)
	}

	detail, err := env.sets.Get(env.dbc, user, set.ID, types.PageRequest{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.CardCount != 15 || len(detail.Cards.Data) != 5 || detail.Cards.Pagination.Pages != 2 {
		t.Fatalf("detail: count=%d page=%d pages=%d", detail.CardCount, len(detail.Cards.Data), detail.Cards.Pagination.Pages)
	}

	list, err := env.sets.List(env.dbc, user, types.PageRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].CardCount != 15 {
		t.Fatalf("list: %+v", list.Data)
	}
}

func TestCardSetRemoveCardCascade(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	a := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, user, "A")
	b := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, user, "B")
	shared := testutil.SeedCard(t, env.dbc.Ctx, env.db, user, "shared")
	single := testutil.SeedCard(t, env.dbc.Ctx, env.db, user, "single")
	testutil.SeedLink(t, env.dbc.Ctx, env.db, shared.ID, a.ID)
	testutil.SeedLink(t, env.dbc.Ctx, env.db, shared.ID, b.ID)
	testutil.SeedLink(t, env.dbc.Ctx, env.db, single.ID, a.ID)

	deleted, err := env.sets.RemoveCard(env.dbc, user, a.ID, shared.ID)
	if err != nil {
		t.Fatalf("RemoveCard shared: %v", err)
	}
	if deleted {
		t.Fatalf("card still in set B must survive")
	}
	if _, err := env.cards.Get(env.dbc, user, shared.ID); err != nil {
		t.Fatalf("shared card must still exist: %v", err)
	}

	deleted, err = env.sets.RemoveCard(env.dbc, user, a.ID, single.ID)
	if err != nil {
		t.Fatalf("RemoveCard single: %v", err)
	}
	if !deleted {
		t.Fatalf("card in no other set must be soft-deleted")
	}
	_, err = env.cards.Get(env.dbc, user, single.ID)
	wantCode(t, err, apierr.CodeNotFound)

	_, err = env.sets.RemoveCard(env.dbc, user, a.ID, shared.ID)
	wantCode(t, err, apierr.CodeNotFound)
}

func TestCardSetRemoveCardIgnoresDeletedSets(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	a := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, user, "A")
	b := testutil.SeedCardSet(t, env.dbc.Ctx, env.db, user, "B")
	card := testutil.SeedCard(t, env.dbc.Ctx, env.db, user, "c")
	testutil.SeedLink(t, env.dbc.Ctx, env.db, card.ID, a.ID)
	testutil.SeedLink(t, env.dbc.Ctx, env.db, card.ID, b.ID)

	if err := env.sets.Delete(env.dbc, user, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.cards.Get(env.dbc, user, card.ID); err != nil {
		t.Fatalf("deleting a set keeps its cards: %v", err)
	}
	deleted, err := env.sets.RemoveCard(env.dbc, user, a.ID, card.ID)
	if err != nil {
		t.Fatalf("RemoveCard: %v", err)
	}
	if !deleted {
		t.Fatalf("a deleted set does not keep the card alive")
	}
}
