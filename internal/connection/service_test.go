package connection_test

import (
	"context"
	"sync"
	"testing"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/connection"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	Channel string
	Event   string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, channel, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{channel, event, payload})
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fixture struct {
	store   *storage.MemoryStorage
	pub     *recordingPublisher
	svc     *connection.Service
	student *models.User
	mentor  *models.User
}

// newFixture seeds student id 1 and mentor id 2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStorage()
	pub := &recordingPublisher{}
	f := &fixture{store: store, pub: pub, svc: connection.NewService(store, pub)}

	f.student = &models.User{Name: "Asha", Email: "asha@x.io", Role: models.RoleStudent, Branch: "CSE", Skills: []string{"go"}}
	f.mentor = &models.User{Name: "Ravi", Email: "ravi@x.io", Role: models.RoleMentor}
	require.NoError(t, store.CreateUser(context.Background(), f.student))
	require.NoError(t, store.CreateUser(context.Background(), f.mentor))
	require.Equal(t, uint(1), f.student.ID)
	require.Equal(t, uint(2), f.mentor.ID)
	return f
}

func TestRequestConnection_PublishesNewRequest(t *testing.T) {
	f := newFixture(t)

	conn, created, err := f.svc.RequestConnection(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StatusPending, conn.Status)

	events := f.pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, "user_2", events[0].Channel)
	assert.Equal(t, models.EventNewRequest, events[0].Event)
	assert.Equal(t, models.NewRequestPayload{StudentID: 1}, events[0].Payload)
}

func TestRequestConnection_CollapsesToExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)
	second, created, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.pub.all(), 1)

	pending, err := f.svc.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRequestConnection_ConcurrentCreatesOnce(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.RequestConnection(context.Background(), 1, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pending, err := f.svc.ListPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Len(t, f.pub.all(), 1)
}

func TestRequestConnection_InvalidReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.RequestConnection(ctx, 1, 99)
	assert.ErrorIs(t, err, apperrors.ErrInvalidReference)

	_, _, err = f.svc.RequestConnection(ctx, 2, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidReference)
	assert.Empty(t, f.pub.all())
}

func TestListPending_IncludesStudentProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint(1), pending[0].StudentID)
	assert.Equal(t, "Asha", pending[0].StudentName)
	assert.Equal(t, "CSE", pending[0].StudentBranch)
	assert.Equal(t, []string{"go"}, pending[0].StudentSkills)
}

func TestRespond_AcceptPublishesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	accepted, err := f.svc.Respond(ctx, 2, conn.ID, connection.Accept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)

	events := f.pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, "user_1", events[1].Channel)
	assert.Equal(t, models.EventRequestAccepted, events[1].Event)
	assert.Equal(t, models.RequestAcceptedPayload{MentorID: 2, RoomID: "1_2"}, events[1].Payload)
}

func TestRespond_RejectIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	rejected, err := f.svc.Respond(ctx, 2, conn.ID, connection.Reject)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Len(t, f.pub.all(), 1)
}

func TestRespond_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, 2, 999, connection.Accept)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Respond(ctx, 1, conn.ID, connection.Accept)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Decision("maybe"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Accept)
	require.NoError(t, err)

	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Reject)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Accept)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRespond_ConcurrentHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, transitions := 0, 0
	for _, d := range []connection.Decision{connection.Accept, connection.Reject, connection.Accept, connection.Reject} {
		wg.Add(1)
		go func(d connection.Decision) {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, 2, conn.ID, d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, apperrors.ErrInvalidTransition):
				transitions++
			}
		}(d)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, transitions)
}

func TestListActive_SymmetricRoomIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Accept)
	require.NoError(t, err)

	fromStudent, err := f.svc.ListActive(ctx, 1)
	require.NoError(t, err)
	fromMentor, err := f.svc.ListActive(ctx, 2)
	require.NoError(t, err)

	require.Len(t, fromStudent, 1)
	require.Len(t, fromMentor, 1)
	assert.Equal(t, "1_2", fromStudent[0].RoomID)
	assert.Equal(t, fromStudent[0].RoomID, fromMentor[0].RoomID)

	assert.Equal(t, uint(2), fromStudent[0].OtherID)
	assert.Equal(t, "Ravi", fromStudent[0].OtherName)
	assert.Equal(t, models.RoleMentor, fromStudent[0].OtherRole)
	assert.Equal(t, uint(1), fromMentor[0].OtherID)
	assert.Equal(t, models.RoleStudent, fromMentor[0].OtherRole)

	_, err = f.svc.ListActive(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrInvalidReference)
}

func TestParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Participants(ctx, "1_2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Participants(ctx, "garbage")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	conn, _, err := f.svc.RequestConnection(ctx, 1, 2)
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, 2, conn.ID, connection.Accept)
	require.NoError(t, err)

	found, err := f.svc.Participants(ctx, "1_2")
	require.NoError(t, err)
	assert.Equal(t, conn.ID, found.ID)

	ok, err := f.svc.IsParticipant(ctx, "1_2", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.IsParticipant(ctx, "1_2", 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
