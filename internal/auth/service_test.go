package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpot-chat/internal/config"
	"hotpot-chat/internal/database"
	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
)

func newService(t *testing.T) (*Service, *database.MemoryDB) {
	t.Helper()
	db := database.NewMemoryDB()
	return NewService(db, config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}), db
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	reg, err := svc.Register(ctx, &models.RegisterRequest{Username: " mei ", Email: "Mei@Hotpot.test", Password: "supersecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "mei", reg.User.Username)
	assert.Equal(t, "mei@hotpot.test", reg.User.Email)
	assert.Equal(t, models.RoleCustomer, reg.User.Role)
	assert.Empty(t, reg.User.PasswordHash)

	login, err := svc.Login(ctx, &models.LoginRequest{Email: "mei@hotpot.test", Password: "supersecret"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "mei@hotpot.test", Password: "wrong-password"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@hotpot.test", Password: "whatever1"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestRegisterRejectsAdminAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Register(ctx, &models.RegisterRequest{Username: "root", Email: "root@hotpot.test", Password: "supersecret", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.Register(ctx, &models.RegisterRequest{Username: "chen", Email: "chen@hotpot.test", Password: "supersecret", Role: models.RoleManager})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &models.RegisterRequest{Username: "chen2", Email: "chen@hotpot.test", Password: "supersecret"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newService(t)
	user := &models.User{ID: 3, Username: "li", Role: models.RoleManager}

	token, err := svc.generateToken(user)
	require.NoError(t, err)

	other := NewService(database.NewMemoryDB(), config.AuthConfig{JWTSecret: "another-secret", TokenTTL: time.Hour})
	_, err = other.ValidateToken(token)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.generateToken(user)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 3})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	reg, err := svc.Register(ctx, &models.RegisterRequest{Username: "wen", Email: "wen@hotpot.test", Password: "supersecret"})
	require.NoError(t, err)

	var seen int
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, err = UserIDFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, reg.User.ID, seen)

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+reg.Token, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"missing authorization token","data":null}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
	req.Header.Set("Authorization", "Token "+reg.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserIDFromContextMissing(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}
