package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ftotnem/astar-livesearch/hunt/events"
	"github.com/Ftotnem/astar-livesearch/hunt/store"
	"github.com/Ftotnem/astar-livesearch/shared/models"
)

func TestRegisterAssignsColorsRoundRobin(t *testing.T) {
	h := newHarness(t, nil)

	var got []int
	for _, g := range []string{"g1", "g2", "g3", "g4", "g5", "g6"} {
		got = append(got, h.register(t, "fp-"+g, g, "A", "B").RouteColorIndex)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2}, got)
}

func TestRegisterFirstTwoTeams(t *testing.T) {
	h := newHarness(t, nil)

	first := h.register(t, "fp-1", "ab123", "A", "B", "C")
	second := h.register(t, "fp-2", "cd456", "A", "B", "C")

	assert.Equal(t, 1, first.RouteColorIndex)
	assert.Equal(t, "Yellow", first.RouteColor.Name)
	assert.Equal(t, 2, second.RouteColorIndex)
	assert.NotEqual(t, first.TeamID, second.TeamID)
}

func TestRegisterInitializesProgress(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.reg.Register(context.Background(), RegisterRequest{
		Identity:   " fp-1 ",
		GroupID:    "ab123",
		FullName:   "Ada",
		Section:    "002",
		IdealRoute: []string{"A", " B", "C"},
		Members: []models.Member{
			{GroupID: "ab123", DisplayName: "Ada", Section: "002"},
			{},
			{GroupID: "cd456", DisplayName: "Grace", Section: "002"},
		},
	})
	require.NoError(t, err)

	team := h.team(t, "fp-1")
	assert.Equal(t, []string{"A", "B", "C"}, team.IdealRoute)
	assert.Empty(t, team.GoodProgress)
	require.Len(t, team.ProgressLog, 1)
	assert.Equal(t, models.MarkerInitial, team.ProgressLog[0].Marker)
	assert.False(t, team.ProgressLog[0].Timestamp.IsZero())
	assert.Len(t, team.Members, 2)
	assert.Equal(t, []string{events.TypeRegistered}, h.pub.types())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "fp-1", "ab123", "A")
	ctx := context.Background()

	_, err := h.reg.Register(ctx, RegisterRequest{Identity: "fp-1", GroupID: "zz999", FullName: "X", IdealRoute: []string{"A"}})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = h.reg.Register(ctx, RegisterRequest{Identity: "fp-2", GroupID: "ab123", FullName: "X", IdealRoute: []string{"A"}})
	assert.ErrorIs(t, err, ErrDuplicateGroupID)

	// rejected registrations do not consume a color
	next := h.register(t, "fp-3", "ef789", "A")
	assert.Equal(t, 2, next.RouteColorIndex)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"no identity", RegisterRequest{GroupID: "g", FullName: "n", IdealRoute: []string{"A"}}, ErrMissingFields},
		{"no group", RegisterRequest{Identity: "fp", FullName: "n", IdealRoute: []string{"A"}}, ErrMissingFields},
		{"no name", RegisterRequest{Identity: "fp", GroupID: "g", IdealRoute: []string{"A"}}, ErrMissingFields},
		{"no route", RegisterRequest{Identity: "fp", GroupID: "g", FullName: "n"}, ErrMissingFields},
		{"duplicate node", RegisterRequest{Identity: "fp", GroupID: "g", FullName: "n", IdealRoute: []string{"A", "B", "A"}}, ErrInvalidRoute},
		{"blank node", RegisterRequest{Identity: "fp", GroupID: "g", FullName: "n", IdealRoute: []string{"A", " "}}, ErrInvalidRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.reg.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterUsesDefaultRoute(t *testing.T) {
	repo := store.NewMemoryTeamStore()
	reg := NewRegistrationService(repo, &store.MemoryColorSequence{}, []string{"A", "B", "C", "D", "E"}, nil, nil)

	_, err := reg.Register(context.Background(), RegisterRequest{Identity: "fp", GroupID: "g", FullName: "n"})
	require.NoError(t, err)

	team, err := repo.FindByIdentity(context.Background(), "fp")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, team.IdealRoute)
}
