package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/service"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret, issuer string, role domain.Role, expiresIn time.Duration) (string, primitive.ObjectID) {
	t.Helper()
	uid := primitive.NewObjectID()
	now := time.Now()
	claims := &service.Claims{
		UserID: uid.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token, uid
}

func protectedEngine() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), RoleMiddleware(domain.RoleCreator), func(c *gin.Context) {
		id, ok := creatorID(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, id.Hex())
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid, uid := signToken(t, testSecret, service.TokenIssuer, domain.RoleCreator, time.Hour)
	expired, _ := signToken(t, testSecret, service.TokenIssuer, domain.RoleCreator, -time.Minute)
	foreign, _ := signToken(t, testSecret, "someone-else", domain.RoleCreator, time.Hour)
	wrongKey, _ := signToken(t, "other-secret", service.TokenIssuer, domain.RoleCreator, time.Hour)
	admin, _ := signToken(t, testSecret, service.TokenIssuer, domain.RoleAdmin, time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "foreign issuer", header: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + wrongKey, want: http.StatusUnauthorized},
		{name: "role not allowed", header: "Bearer " + admin, want: http.StatusForbidden},
	}
	r := protectedEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.Equal(t, uid.Hex(), w.Body.String())
			}
		})
	}
}

func TestPathIDRejectsMalformedIDs(t *testing.T) {
	r := gin.New()
	r.GET("/programs/:id", func(c *gin.Context) {
		if _, ok := pathID(c, "id"); !ok {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/programs/not-an-id", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/programs/"+primitive.NewObjectID().Hex(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
