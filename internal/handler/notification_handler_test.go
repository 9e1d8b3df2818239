package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub/internal/handler"
	"learnhub/internal/httpserver"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/internal/service"
	"learnhub/pkg/util"
)

const testSecret = "test-secret"

type stubService struct {
	createResp   *model.Notification
	createErr    error
	listResp     []model.Notification
	listErr      error
	markReadResp *model.Notification
	markReadErr  error
	deleteResp   *model.Notification
	deleteErr    error

	gotCreate   service.CreateInput
	gotMarkRead [2]string // userID, id
}

func (s *stubService) Create(ctx context.Context, in service.CreateInput) (*model.Notification, error) {
	s.gotCreate = in
	return s.createResp, s.createErr
}

func (s *stubService) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return s.listResp, s.listErr
}

func (s *stubService) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	s.gotMarkRead = [2]string{userID, id}
	return s.markReadResp, s.markReadErr
}

func (s *stubService) Delete(ctx context.Context, userID, id string) (*model.Notification, error) {
	return s.deleteResp, s.deleteErr
}

func newTestRouter(svc handler.NotificationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := handler.NewNotificationHandler(svc, zap.NewNop())
	auth := r.Group("/")
	auth.Use(httpserver.AuthMiddleware(testSecret))
	{
		auth.GET("/notifications", h.List)
		auth.POST("/notifications", h.Create)
		auth.POST("/notifications/:id/read", h.MarkRead)
		auth.DELETE("/notifications/:id", h.Delete)
	}
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := util.GenerateJWT(userID, testSecret)
		if err != nil {
			t.Fatalf("generating token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func TestListRequiresToken(t *testing.T) {
	r := newTestRouter(&stubService{})

	w := doRequest(t, r, http.MethodGet, "/notifications?userId=u1", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestListMissingUserID(t *testing.T) {
	r := newTestRouter(&stubService{})

	w := doRequest(t, r, http.MethodGet, "/notifications", "", "u1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := errorBody(t, w); got != "Missing userId" {
		t.Fatalf("expected error %q, got %q", "Missing userId", got)
	}
}

func TestListForeignUserForbidden(t *testing.T) {
	r := newTestRouter(&stubService{})

	w := doRequest(t, r, http.MethodGet, "/notifications?userId=u2", "", "u1")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestListOK(t *testing.T) {
	svc := &stubService{
		listResp: []model.Notification{
			{ID: "n1", UserID: "u1", Title: "t", Message: "m", CreatedAt: time.Now()},
		},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodGet, "/notifications?userId=u1", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var list []model.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("unexpected list %v", list)
	}
}

func TestCreateMissingFields(t *testing.T) {
	svc := &stubService{
		createErr: &service.ValidationError{Fields: []string{"title", "message"}},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodPost, "/notifications", `{"userId":"u1"}`, "u1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := errorBody(t, w); got != "Missing fields: title, message" {
		t.Fatalf("unexpected error message %q", got)
	}
}

func TestCreateForeignUserForbidden(t *testing.T) {
	r := newTestRouter(&stubService{})

	w := doRequest(t, r, http.MethodPost, "/notifications",
		`{"userId":"u2","title":"t","message":"m"}`, "u1")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCreateOK(t *testing.T) {
	svc := &stubService{
		createResp: &model.Notification{ID: "n1", UserID: "u1", Title: "t", Message: "m"},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodPost, "/notifications",
		`{"userId":"u1","title":"t","message":"m","type":"enrollment"}`, "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.gotCreate.Source != "api" {
		t.Fatalf("expected source api, got %q", svc.gotCreate.Source)
	}

	var n model.Notification
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if n.ID != "n1" {
		t.Fatalf("unexpected notification %v", n)
	}
}

func TestMarkReadUnknownID(t *testing.T) {
	svc := &stubService{markReadErr: repository.ErrNotFound}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodPost, "/notifications/no-such-id/read", "", "u1")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMarkReadPassesSessionUser(t *testing.T) {
	svc := &stubService{
		markReadResp: &model.Notification{ID: "n1", UserID: "u1", IsRead: true},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodPost, "/notifications/n1/read", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.gotMarkRead != [2]string{"u1", "n1"} {
		t.Fatalf("expected (u1, n1), got %v", svc.gotMarkRead)
	}
}

func TestDeleteOK(t *testing.T) {
	svc := &stubService{
		deleteResp: &model.Notification{ID: "n1", UserID: "u1"},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodDelete, "/notifications/n1", "", "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStorageErrorIsNotLeaked(t *testing.T) {
	svc := &stubService{
		listErr: &service.StorageError{Op: "list", Err: errors.New("pq: password authentication failed")},
	}
	r := newTestRouter(svc)

	w := doRequest(t, r, http.MethodGet, "/notifications?userId=u1", "", "u1")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := errorBody(t, w); got != "internal error" {
		t.Fatalf("storage detail leaked to the client: %q", got)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("storage detail leaked: %s", w.Body.String())
	}
}
