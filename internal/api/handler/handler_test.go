package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mentorbridge/backend/internal/api/handler"
	"mentorbridge/backend/internal/auth"
	"mentorbridge/backend/internal/chathub"
	"mentorbridge/backend/internal/connection"
	"mentorbridge/backend/internal/localization"
	"mentorbridge/backend/internal/mailer"
	"mentorbridge/backend/internal/message"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/rating"
	"mentorbridge/backend/internal/storage"
	"mentorbridge/backend/internal/swipe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *storage.MemoryStorage
	hub    *chathub.Manager
	jwt    *auth.JWTService
	h      *handler.Handler
}

// newTestServer wires every service on a memory store. Users 1 (student), 2 (verified mentor),
// 3 (student) and 4 (verified mentor) exist.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	for _, u := range []*models.User{
		{Name: "Asha", Email: "asha@x.io", Role: models.RoleStudent, IsVerified: true, Branch: "CSE", Skills: []string{"go"}},
		{Name: "Ravi", Email: "ravi@x.io", Role: models.RoleMentor, IsVerified: true, SystemRating: 4},
		{Name: "Omar", Email: "omar@x.io", Role: models.RoleStudent, IsVerified: true},
		{Name: "Mei", Email: "mei@x.io", Role: models.RoleMentor, IsVerified: true, SystemRating: 2},
	} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	loc, err := localization.NewLocalizer()
	require.NoError(t, err)
	jwtSvc := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", Expiration: time.Hour, TokenIssuer: "test"})

	hub := chathub.NewManager(nil, nil)
	conns := connection.NewService(store, hub)
	hub.SetRooms(conns)
	msgs := message.NewService(store, conns, hub)
	hub.Messages = msgs

	h := &handler.Handler{
		Hub:         hub,
		Storage:     store,
		Auth:        auth.NewService(store, jwtSvc, mailer.NewLogMailer("en", loc), true),
		Swipes:      swipe.NewService(store, conns),
		Connections: conns,
		Messages:    msgs,
		Rating:      rating.NewService(store),
	}
	return &testServer{router: h.Router(), store: store, hub: hub, jwt: jwtSvc, h: h}
}

func (s *testServer) token(t *testing.T, userID uint) string {
	t.Helper()
	user, err := s.store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	token, err := s.jwt.GenerateToken(user)
	require.NoError(t, err)
	return token
}

// do sends a request as userID (0 for anonymous) and decodes the JSON response into out.
func (s *testServer) do(t *testing.T, userID uint, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, s.do(t, 0, http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	var signup struct {
		UserID   uint   `json:"userId"`
		DebugOTP string `json:"debugOtp"`
	}
	code := s.do(t, 0, http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Lin", "email": "lin@x.io", "password": "hunter22", "role": "student",
	}, &signup)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, signup.DebugOTP)

	var e apiError
	code = s.do(t, 0, http.MethodPost, "/api/auth/login", gin.H{"email": "lin@x.io", "password": "hunter22"}, &e)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", e.Code)

	code = s.do(t, 0, http.MethodPost, "/api/auth/verify-otp", gin.H{"email": "lin@x.io", "otp": "000000x"}, &e)
	assert.Equal(t, http.StatusBadRequest, code)

	require.Equal(t, http.StatusOK,
		s.do(t, 0, http.MethodPost, "/api/auth/verify-otp", gin.H{"email": "lin@x.io", "otp": signup.DebugOTP}, nil))

	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.Equal(t, http.StatusOK,
		s.do(t, 0, http.MethodPost, "/api/auth/login", gin.H{"email": "lin@x.io", "password": "hunter22"}, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, signup.UserID, login.User.ID)

	code = s.do(t, 0, http.MethodPost, "/api/auth/login", gin.H{"email": "lin@x.io", "password": "wrong!!"}, &e)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)
	var e apiError
	code := s.do(t, 0, http.MethodPost, "/api/auth/signup", gin.H{"email": "x@x.io"}, &e)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", e.Code)

	code = s.do(t, 0, http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Dup", "email": "asha@x.io", "password": "hunter22", "role": "student",
	}, &e)
	assert.Equal(t, http.StatusConflict, code)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	var e apiError
	assert.Equal(t, http.StatusUnauthorized, s.do(t, 0, http.MethodGet, "/api/mentors", nil, &e))
	assert.Equal(t, "UNAUTHORIZED", e.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/me?token="+s.token(t, 1), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListMentors_ExcludesSwiped(t *testing.T) {
	s := newTestServer(t)

	var mentors []models.UserSummary
	require.Equal(t, http.StatusOK, s.do(t, 1, http.MethodGet, "/api/mentors", nil, &mentors))
	require.Len(t, mentors, 2)
	assert.Equal(t, uint(2), mentors[0].ID, "higher rated mentor first")

	require.Equal(t, http.StatusCreated,
		s.do(t, 1, http.MethodPost, "/api/swipes", gin.H{"mentorId": 2, "direction": "left"}, nil))

	mentors = nil
	require.Equal(t, http.StatusOK, s.do(t, 1, http.MethodGet, "/api/mentors?studentId=1", nil, &mentors))
	require.Len(t, mentors, 1)
	assert.Equal(t, uint(4), mentors[0].ID)

	var e apiError
	assert.Equal(t, http.StatusForbidden, s.do(t, 1, http.MethodGet, "/api/mentors?studentId=3", nil, &e))
}

func TestSwipeRightToChat(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	mentorInbox := chathub.NewChannelClient(2, 8)
	studentInbox := chathub.NewChannelClient(1, 8)
	for _, c := range []*chathub.ChannelClient{mentorInbox, studentInbox} {
		s.hub.Register(c)
		require.NoError(t, s.hub.Join(ctx, c, models.UserChannel(c.UserID())))
	}

	var swiped struct {
		Created bool `json:"created"`
	}
	require.Equal(t, http.StatusCreated,
		s.do(t, 1, http.MethodPost, "/api/swipes", gin.H{"studentId": 1, "mentorId": 2, "direction": "right"}, &swiped))
	assert.True(t, swiped.Created)

	ev := <-mentorInbox.Events()
	assert.Equal(t, models.EventNewRequest, ev.Event)
	assert.Equal(t, models.NewRequestPayload{StudentID: 1}, ev.Payload)

	// A repeated swipe changes nothing.
	require.Equal(t, http.StatusOK,
		s.do(t, 1, http.MethodPost, "/api/swipes", gin.H{"mentorId": 2, "direction": "right"}, &swiped))
	assert.False(t, swiped.Created)

	var pending []models.PendingRequest
	require.Equal(t, http.StatusOK, s.do(t, 2, http.MethodGet, "/api/connections/pending/2", nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "Asha", pending[0].StudentName)

	var e apiError
	assert.Equal(t, http.StatusForbidden,
		s.do(t, 1, http.MethodPost, "/api/connections/respond", gin.H{"connectionId": pending[0].ID, "status": "accepted"}, &e))

	require.Equal(t, http.StatusOK,
		s.do(t, 2, http.MethodPost, "/api/connections/respond", gin.H{"connectionId": pending[0].ID, "status": "accepted"}, nil))

	ev = <-studentInbox.Events()
	assert.Equal(t, models.EventRequestAccepted, ev.Event)
	assert.Equal(t, models.RequestAcceptedPayload{MentorID: 2, RoomID: "1_2"}, ev.Payload)

	assert.Equal(t, http.StatusConflict,
		s.do(t, 2, http.MethodPost, "/api/connections/respond", gin.H{"connectionId": pending[0].ID, "status": "rejected"}, &e))
	assert.Equal(t, "INVALID_TRANSITION", e.Code)

	for _, id := range []uint{1, 2} {
		var active []models.ActiveConnection
		require.Equal(t, http.StatusOK, s.do(t, id, http.MethodGet, fmt.Sprintf("/api/connections/active/%d", id), nil, &active))
		require.Len(t, active, 1)
		assert.Equal(t, "1_2", active[0].RoomID)
	}

	require.NoError(t, s.hub.Join(ctx, studentInbox, "1_2"))
	var sent models.Message
	require.Equal(t, http.StatusCreated,
		s.do(t, 2, http.MethodPost, "/api/messages", gin.H{"roomId": "1_2", "text": "hello"}, &sent))
	assert.Equal(t, uint(2), sent.SenderID)
	assert.Equal(t, models.MessageText, sent.Type)

	ev = <-studentInbox.Events()
	assert.Equal(t, models.EventMessage, ev.Event)

	var history []models.Message
	require.Equal(t, http.StatusOK, s.do(t, 1, http.MethodGet, "/api/messages/1_2", nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)

	assert.Equal(t, http.StatusForbidden, s.do(t, 3, http.MethodGet, "/api/messages/1_2", nil, &e))
	assert.Equal(t, "UNAUTHORIZED", e.Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(t, 3, http.MethodPost, "/api/messages", gin.H{"roomId": "1_2", "text": "hi"}, &e))
	assert.Equal(t, http.StatusForbidden,
		s.do(t, 1, http.MethodPost, "/api/messages", gin.H{"roomId": "1_2", "senderId": 2, "text": "spoof"}, &e))
}

func TestRequestConnection(t *testing.T) {
	s := newTestServer(t)

	var conn models.Connection
	require.Equal(t, http.StatusCreated,
		s.do(t, 3, http.MethodPost, "/api/connections/request", gin.H{"mentorId": 4}, &conn))
	assert.Equal(t, models.StatusPending, conn.Status)

	var again models.Connection
	require.Equal(t, http.StatusOK,
		s.do(t, 3, http.MethodPost, "/api/connections/request", gin.H{"studentId": 3, "mentorId": 4}, &again))
	assert.Equal(t, conn.ID, again.ID)

	var e apiError
	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, 3, http.MethodPost, "/api/connections/request", gin.H{"mentorId": 1}, &e))
	assert.Equal(t, "INVALID_REFERENCE", e.Code)

	assert.Equal(t, http.StatusForbidden,
		s.do(t, 1, http.MethodPost, "/api/connections/request", gin.H{"studentId": 3, "mentorId": 4}, &e))
}

func TestListPending_OnlyOwnInbox(t *testing.T) {
	s := newTestServer(t)
	var e apiError
	assert.Equal(t, http.StatusForbidden, s.do(t, 4, http.MethodGet, "/api/connections/pending/2", nil, &e))
	assert.Equal(t, http.StatusForbidden, s.do(t, 1, http.MethodGet, "/api/connections/pending/1", nil, &e))
	assert.Equal(t, http.StatusBadRequest, s.do(t, 2, http.MethodGet, "/api/connections/pending/abc", nil, &e))
}

func TestVerifyMentorAndSkills(t *testing.T) {
	s := newTestServer(t)

	var verified struct {
		SystemRating float64 `json:"systemRating"`
	}
	require.Equal(t, http.StatusOK, s.do(t, 4, http.MethodPost, "/api/mentors/verify", gin.H{
		"linkedinUrl": "https://linkedin.com/in/mei", "githubUrl": "https://github.com/mei",
	}, &verified))
	assert.InDelta(t, 4.0, verified.SystemRating, 1e-9)

	var e apiError
	assert.Equal(t, http.StatusUnprocessableEntity,
		s.do(t, 1, http.MethodPost, "/api/mentors/verify", gin.H{"githubUrl": "github.com/a"}, &e))

	var skills struct {
		Skills []string `json:"skills"`
	}
	require.Equal(t, http.StatusOK,
		s.do(t, 1, http.MethodPost, "/api/users/update-skills", gin.H{"skills": []string{"SQL", "go", "sql"}}, &skills))
	assert.Equal(t, []string{"go", "sql"}, skills.Skills)

	assert.Equal(t, http.StatusBadRequest, s.do(t, 1, http.MethodPost, "/api/users/skills", gin.H{}, &e))
}

func TestUploads_UnavailableWithoutS3(t *testing.T) {
	s := newTestServer(t)
	var e apiError
	assert.Equal(t, http.StatusServiceUnavailable,
		s.do(t, 1, http.MethodPost, "/api/uploads", gin.H{"kind": "cv", "fileName": "a.pdf", "fileType": "application/pdf"}, &e))
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, 1, http.MethodGet, "/api/uploads/url?key=cvs/1/a.pdf", nil, &e))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.h.Limiter = handler.NewRateLimiter(handler.PerMinute(1, 2))
	defer s.h.Limiter.Stop()
	s.router = s.h.Router()

	assert.Equal(t, http.StatusOK, s.do(t, 1, http.MethodGet, "/api/users/me", nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, 1, http.MethodGet, "/api/users/me", nil, nil))

	var e apiError
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, 1, http.MethodGet, "/api/users/me", nil, &e))
	assert.Equal(t, "RATE_LIMITED", e.Code)

	// Budgets are per user.
	assert.Equal(t, http.StatusOK, s.do(t, 3, http.MethodGet, "/api/users/me", nil, nil))
}

func TestListMessages_UnknownRoom(t *testing.T) {
	s := newTestServer(t)

	for _, room := range []string{"1_4", "not-a-room"} {
		var e apiError
		assert.Equal(t, http.StatusNotFound, s.do(t, 1, http.MethodGet, "/api/messages/"+room, nil, &e), room)
		assert.Equal(t, "NOT_FOUND", e.Code)
	}
}

func TestAuthRoutesLimitedPerClientIP(t *testing.T) {
	s := newTestServer(t)
	s.h.AuthLimiter = handler.NewRateLimiter(handler.PerMinute(1, 3))
	defer s.h.AuthLimiter.Stop()
	s.router = s.h.Router()

	verify := func(remoteAddr string) (int, apiError) {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(gin.H{"email": "asha@x.io", "otp": "000000"}))
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		var e apiError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
		return w.Code, e
	}

	for i := 0; i < 3; i++ {
		code, _ := verify("203.0.113.7:4000")
		assert.Equal(t, http.StatusBadRequest, code)
	}
	code, e := verify("203.0.113.7:4001")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMITED", e.Code)

	code, _ = verify("198.51.100.2:4000")
	assert.Equal(t, http.StatusBadRequest, code, "other clients keep their own budget")
}

func TestResendOTP(t *testing.T) {
	s := newTestServer(t)

	var signup struct {
		DebugOTP string `json:"debugOtp"`
	}
	require.Equal(t, http.StatusCreated, s.do(t, 0, http.MethodPost, "/api/auth/signup", gin.H{
		"name": "Lin", "email": "lin@x.io", "password": "hunter22", "role": "student",
	}, &signup))

	var resent struct {
		DebugOTP string `json:"debugOtp"`
	}
	require.Equal(t, http.StatusOK, s.do(t, 0, http.MethodPost, "/api/auth/resend-otp", gin.H{"email": "lin@x.io"}, &resent))
	require.NotEmpty(t, resent.DebugOTP)

	var e apiError
	if resent.DebugOTP != signup.DebugOTP {
		assert.Equal(t, http.StatusBadRequest,
			s.do(t, 0, http.MethodPost, "/api/auth/verify-otp", gin.H{"email": "lin@x.io", "otp": signup.DebugOTP}, &e),
			"the replaced code is no longer valid")
	}
	require.Equal(t, http.StatusOK,
		s.do(t, 0, http.MethodPost, "/api/auth/verify-otp", gin.H{"email": "lin@x.io", "otp": resent.DebugOTP}, nil))

	assert.Equal(t, http.StatusConflict, s.do(t, 0, http.MethodPost, "/api/auth/resend-otp", gin.H{"email": "lin@x.io"}, &e))

	var unknown struct {
		DebugOTP string `json:"debugOtp"`
	}
	assert.Equal(t, http.StatusOK, s.do(t, 0, http.MethodPost, "/api/auth/resend-otp", gin.H{"email": "nobody@x.io"}, &unknown))
	assert.Empty(t, unknown.DebugOTP)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	s := newTestServer(t)
	s.h.AllowedOrigins = []string{"https://app.mentorbridge.com"}
	srv := httptest.NewServer(s.h.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + s.token(t, 1)
	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		return websocket.DefaultDialer.Dial(url, header)
	}

	conn, _, err := dial("https://app.mentorbridge.com")
	require.NoError(t, err)
	conn.Close()

	conn, _, err = dial("")
	require.NoError(t, err, "native clients send no Origin")
	conn.Close()

	_, resp, err := dial("https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
