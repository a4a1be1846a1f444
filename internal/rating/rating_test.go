package rating

import (
	"context"
	"testing"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		links Links
		want  float64
	}{
		{"no links", Links{}, 1.0},
		{"linkedin", Links{LinkedinURL: "https://www.LinkedIn.com/in/ravi"}, 2.5},
		{"github", Links{GithubURL: "https://github.com/ravi"}, 2.5},
		{"wrong host", Links{LinkedinURL: "https://example.com/ravi", GithubURL: "gitlab.com/ravi"}, 1.0},
		{"cv only", Links{CvURL: "cvs/ravi.pdf"}, 2.0},
		{"all, capped", Links{LinkedinURL: "linkedin.com/in/r", GithubURL: "github.com/r", CvURL: "cvs/r.pdf"}, 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Heuristic(tt.links), 1e-9)
		})
	}
}

func TestGetWeight_Unknown(t *testing.T) {
	assert.Equal(t, 0.0, GetWeight("twitter"))
}

func seed(t *testing.T) (*storage.MemoryStorage, *Service) {
	t.Helper()
	store := storage.NewMemoryStorage()
	require.NoError(t, store.CreateUser(context.Background(), &models.User{Email: "m@x.io", Role: models.RoleMentor}))
	require.NoError(t, store.CreateUser(context.Background(), &models.User{Email: "s@x.io", Role: models.RoleStudent}))
	return store, NewService(store)
}

func TestVerifyMentor(t *testing.T) {
	ctx := context.Background()
	store, svc := seed(t)

	score, err := svc.VerifyMentor(ctx, 1, Links{GithubURL: "https://github.com/ravi"}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, score, 1e-9)

	user, err := store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/ravi", user.GithubURL)
	assert.InDelta(t, 2.5, user.SystemRating, 1e-9)

	score, err = svc.VerifyMentor(ctx, 1, Links{}, 9.2)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, score, 1e-9)

	score, err = svc.VerifyMentor(ctx, 1, Links{}, 3.7)
	require.NoError(t, err)
	assert.InDelta(t, 3.7, score, 1e-9)
}

func TestVerifyMentor_Errors(t *testing.T) {
	ctx := context.Background()
	_, svc := seed(t)

	_, err := svc.VerifyMentor(ctx, 2, Links{}, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidReference)

	_, err = svc.VerifyMentor(ctx, 99, Links{}, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidReference)

	_, err = svc.VerifyMentor(ctx, 1, Links{}, -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSetRating(t *testing.T) {
	ctx := context.Background()
	store, svc := seed(t)

	require.NoError(t, svc.SetRating(ctx, 1, 4.5))
	user, err := store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, user.SystemRating, 1e-9)

	assert.ErrorIs(t, svc.SetRating(ctx, 1, 6), apperrors.ErrValidation)
	assert.ErrorIs(t, svc.SetRating(ctx, 42, 1), apperrors.ErrNotFound)
}
