package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/evura/portal-api/internal/handler"
	"github.com/evura/portal-api/internal/model"
	"github.com/evura/portal-api/internal/service/audit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockTokens struct {
	ValidateFunc func(token string) (*model.Principal, error)
}

func (m *MockTokens) Validate(token string) (*model.Principal, error) {
	return m.ValidateFunc(token)
}

var (
	doctor  = &model.Principal{UserID: uuid.New(), Role: model.RoleDoctor, Username: "house"}
	patient = &model.Principal{UserID: uuid.New(), Role: model.RolePatient, Username: "alice"}
)

func tokens() *MockTokens {
	return &MockTokens{ValidateFunc: func(token string) (*model.Principal, error) {
		switch token {
		case "doctor":
			return doctor, nil
		case "patient":
			return patient, nil
		}
		return nil, errors.New("bad token")
	}}
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.Response {
	t.Helper()
	var resp handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAuthenticateAndGuards(t *testing.T) {
	auth := NewAuthMiddleware(tokens())
	r := gin.New()
	ok := func(c *gin.Context) {
		p, found := PrincipalFrom(c)
		require.True(t, found)
		fromCtx, found := PrincipalFromContext(c.Request.Context())
		require.True(t, found)
		assert.Same(t, p, fromCtx)
		c.JSON(http.StatusOK, handler.NewSuccessResponse(p.Username))
	}
	r.GET("/any", auth.Authenticate(), ok)
	r.GET("/doctor", auth.Authenticate(), DoctorOnly(), ok)
	r.GET("/patient", auth.Authenticate(), PatientOnly(), ok)
	r.GET("/unguarded", PatientOnly(), ok)

	tests := []struct {
		path, token string
		want        int
	}{
		{"/any", "", http.StatusUnauthorized},
		{"/any", "forged", http.StatusUnauthorized},
		{"/any", "patient", http.StatusOK},
		{"/doctor", "doctor", http.StatusOK},
		{"/doctor", "patient", http.StatusForbidden},
		{"/patient", "doctor", http.StatusForbidden},
		{"/patient", "patient", http.StatusOK},
		{"/unguarded", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		w := serve(r, http.MethodGet, tt.path, tt.token)
		assert.Equal(t, tt.want, w.Code, "%s as %q", tt.path, tt.token)
		resp := decode(t, w)
		if tt.want == http.StatusOK {
			assert.Equal(t, "success", resp.Status)
		} else {
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		}
	}
}

func TestBearerTokenParsing(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Authorization", header)
		got, ok := BearerToken(c)
		assert.Equal(t, want, got, header)
		assert.Equal(t, want != "", ok, header)
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2})
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2"))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 4, SkipPaths: []string{"/upload"}}))
	r.POST("/small", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/upload", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/small", strings.NewReader("too long"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("too long"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type MockAudit struct {
	LogFunc func(ctx context.Context, actor *model.Principal, action, entityType, entityID string, opts *audit.LogOptions) error
	calls   []string
}

func (m *MockAudit) Log(ctx context.Context, actor *model.Principal, action, entityType, entityID string, opts *audit.LogOptions) error {
	m.calls = append(m.calls, action+" "+entityType+" "+entityID)
	if m.LogFunc != nil {
		return m.LogFunc(ctx, actor, action, entityType, entityID, opts)
	}
	return nil
}

func TestAuditRecord(t *testing.T) {
	rec := &MockAudit{LogFunc: func(context.Context, *model.Principal, string, string, string, *audit.LogOptions) error {
		return errors.New("audit table locked")
	}}
	am := NewAuditMiddleware(rec)
	auth := NewAuthMiddleware(tokens())

	r := gin.New()
	r.GET("/files/:id", auth.Authenticate(), am.Record(model.AuditEntityMedicalFile, "id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/me/records", auth.Authenticate(), am.Record(model.AuditEntityMedicalFile, ""), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	// The failing audit write does not change the response.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/files/f-1", "doctor").Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/me/records", "patient").Code)

	assert.Equal(t, []string{
		"read medical_file f-1",
		"create medical_file " + patient.UserID.String(),
	}, rec.calls)
}

func TestRequestIDEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "req-42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderXRequestID))
	assert.NoError(t, err)
}
