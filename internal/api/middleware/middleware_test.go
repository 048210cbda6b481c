package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/api/shared"
	"github.com/phrazzld/tasksync/internal/domain"
	"github.com/phrazzld/tasksync/internal/platform/logger"
	"github.com/phrazzld/tasksync/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, role domain.Role) (string, error) {
	args := m.Called(ctx, userID, role)
	return args.String(0), args.Error(1)
}

func (m *MockJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc", "abc", nil},
		{"bearer abc", "abc", nil},
		{"", "", auth.ErrMissingToken},
		{"Basic abc", "", ErrInvalidAuthFormat},
		{"Bearer", "", ErrInvalidAuthFormat},
		{"Bearer   ", "", ErrInvalidAuthFormat},
	}

	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			got, err := BearerToken(r)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		authHeader     string
		claims         *auth.Claims
		validateErr    error
		expectedStatus int
	}{
		{"valid token", "Bearer good", &auth.Claims{UserID: userID, Role: domain.RoleMember}, nil, http.StatusOK},
		{"missing header", "", nil, nil, http.StatusUnauthorized},
		{"bad format", "Token good", nil, nil, http.StatusUnauthorized},
		{"expired", "Bearer old", nil, auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid", "Bearer forged", nil, auth.ErrInvalidToken, http.StatusUnauthorized},
		{"unexpected failure", "Bearer good", nil, errors.New("keystore offline"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jwtSvc := new(MockJWTService)
			if tc.claims != nil || tc.validateErr != nil {
				jwtSvc.On("ValidateToken", mock.Anything, mock.AnythingOfType("string")).
					Return(tc.claims, tc.validateErr)
			}
			log, _ := logger.NewTestLogger()
			mw := NewAuthMiddleware(jwtSvc, log)

			var seen domain.Identity
			handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = shared.IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.authHeader != "" {
				r.Header.Set("Authorization", tc.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.expectedStatus == http.StatusOK {
				assert.Equal(t, domain.Identity{ID: userID, Role: domain.RoleMember}, seen)
			}
			jwtSvc.AssertExpectations(t)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(domain.RoleAdmin)(ok)

	serve := func(ctx context.Context) int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx))
		return w.Code
	}

	admin := shared.WithIdentity(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin})
	member := shared.WithIdentity(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleMember})

	assert.Equal(t, http.StatusNoContent, serve(admin))
	assert.Equal(t, http.StatusForbidden, serve(member))
	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
}

func TestTraceMiddleware(t *testing.T) {
	log, buf := logger.NewTestLogger()

	var traceID string
	handler := TraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotEmpty(t, traceID)
	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, traceID, e["trace_id"])
	}
}
