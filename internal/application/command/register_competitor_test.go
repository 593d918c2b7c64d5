package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

func TestRegisterCompetitor_GeneratesID(t *testing.T) {
	repo := newFakeCompetitorRepo()
	publisher := &fakePublisher{}
	handler := NewRegisterCompetitorHandler(repo, publisher)

	result, err := handler.Handle(context.Background(), RegisterCompetitorCommand{
		Name: "Shadow",
		Kind: "player",
	})
	require.NoError(t, err)

	assert.True(t, result.Competitor.ID.IsValid())
	assert.Equal(t, "Shadow", result.Competitor.Name)
	assert.Equal(t, rating.KindPlayer, result.Competitor.Kind)
	assert.Equal(t, rating.RegionNone, result.Competitor.Region)
	assert.Zero(t, result.Competitor.CurrentRP)
	assert.Len(t, publisher.byType(shared.EventCompetitorRegistered), 1)
}

func TestRegisterCompetitor_ExplicitID(t *testing.T) {
	repo := newFakeCompetitorRepo()
	handler := NewRegisterCompetitorHandler(repo, nil)

	result, err := handler.Handle(context.Background(), RegisterCompetitorCommand{
		ID:     competitorA,
		Name:   "Alpha",
		Kind:   "team",
		Region: "na",
	})
	require.NoError(t, err)
	assert.Equal(t, shared.CompetitorID(competitorA), result.Competitor.ID)
	assert.Equal(t, rating.Region("na"), result.Competitor.Region)
}

func TestRegisterCompetitor_DuplicateID(t *testing.T) {
	repo := newFakeCompetitorRepo(newTestCompetitor(t, competitorA, "Alpha", "na"))
	handler := NewRegisterCompetitorHandler(repo, nil)

	_, err := handler.Handle(context.Background(), RegisterCompetitorCommand{
		ID:   competitorA,
		Name: "Alpha Again",
		Kind: "team",
	})
	require.Error(t, err)
	assert.True(t, shared.IsAlreadyExists(err))
}

func TestRegisterCompetitor_InvalidKind(t *testing.T) {
	handler := NewRegisterCompetitorHandler(newFakeCompetitorRepo(), nil)

	_, err := handler.Handle(context.Background(), RegisterCompetitorCommand{
		Name: "Shadow",
		Kind: "clan",
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestRegisterCompetitor_EmptyName(t *testing.T) {
	handler := NewRegisterCompetitorHandler(newFakeCompetitorRepo(), nil)

	_, err := handler.Handle(context.Background(), RegisterCompetitorCommand{
		Name: "   ",
		Kind: "player",
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
