package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"creator_sync/internal/config"
	"creator_sync/internal/service"
	"creator_sync/internal/service/mocks"
)

type RouterTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	creators *mocks.MockCreatorStore
	records  *mocks.MockRecordStore
	syncLog  *mocks.MockSyncLogStore
	jobs     *mocks.MockJobClient
	avatars  *mocks.MockAvatarStore

	router *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.ctrl = gomock.NewController(s.T())

	s.creators = mocks.NewMockCreatorStore(s.ctrl)
	s.records = mocks.NewMockRecordStore(s.ctrl)
	s.syncLog = mocks.NewMockSyncLogStore(s.ctrl)
	s.jobs = mocks.NewMockJobClient(s.ctrl)
	s.avatars = mocks.NewMockAvatarStore(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ingest := service.NewIngestService(
		s.creators, s.records, s.syncLog, s.jobs, s.avatars,
		"hook-secret", 500, logger,
	)

	h := NewHandlers(ingest, nil, nil, nil, logger)
	s.router = NewRouter(h, config.ServerConfig{
		TriggerSecret: "trigger-secret",
		CORSOrigins:   []string{"https://dashboard.example.com"},
	})
}

func (s *RouterTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) TestHealthz() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "ok")
}

func (s *RouterTestSuite) TestWebhook_BadSecret() {
	body := `{"eventType":"ACTOR.RUN.SUCCEEDED","resource":{"id":"r1","defaultDatasetId":"d1"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/sync/tiktok/webhook?handle=nia&mode=new-posts&creatorId=7&secret=wrong",
		strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	// No store expectations: a bad secret must short-circuit everything.
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestWebhook_UnknownPlatform() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/sync/youtube/webhook?handle=nia&mode=new-posts&creatorId=7&secret=hook-secret",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "unknown platform")
}

func (s *RouterTestSuite) TestWebhook_UnknownMode() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/sync/tiktok/webhook?handle=nia&mode=resync-everything&creatorId=7&secret=hook-secret",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestWebhook_MissingCreatorID() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/sync/tiktok/webhook?handle=nia&mode=new-posts&secret=hook-secret",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "creatorId")
}

func (s *RouterTestSuite) TestWebhook_NonSuccessEventAcknowledged() {
	body := `{"eventType":"ACTOR.RUN.ABORTED","resource":{"id":"r1","defaultDatasetId":"d1"}}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost,
		"/sync/tiktok/webhook?handle=nia&mode=new-posts&creatorId=7&secret=hook-secret",
		strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"skipped":true`)
}

func (s *RouterTestSuite) TestInternal_MissingBearer() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/fleet/run", nil)

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestInternal_WrongBearer() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/costs/report", nil)
	req.Header.Set("Authorization", "Bearer nope")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestInternal_BadCreatorIDRejectedBeforeService() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/creators/abc/resync", nil)
	req.Header.Set("Authorization", "Bearer trigger-secret")

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}
