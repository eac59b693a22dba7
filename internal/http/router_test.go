package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idem/internal/identity/handler"
	"idem/internal/identity/handler/mocks"
	"idem/pkg/platform/sentinel"
)

type RouterSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	identity *handler.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.identity = handler.New(mocks.NewMockService(s.ctrl), mocks.NewMockReconciler(s.ctrl), logger)
}

func (s *RouterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RouterSuite) healthz(checks ...HealthCheck) *httptest.ResponseRecorder {
	router := NewRouter(s.identity, slog.New(slog.NewTextHandler(io.Discard, nil)), checks...)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return recorder
}

func (s *RouterSuite) TestHealthz() {
	s.Run("no checks reports ok", func() {
		response := s.healthz()
		s.Equal(http.StatusOK, response.Code)
		s.JSONEq(`{"status":"ok"}`, response.Body.String())
	})

	s.Run("passing checks report ok", func() {
		response := s.healthz(func(context.Context) error { return nil })
		s.Equal(http.StatusOK, response.Code)
	})

	s.Run("failing check reports degraded", func() {
		healthy := func(context.Context) error { return nil }
		unhealthy := func(context.Context) error { return sentinel.ErrUnavailable }

		response := s.healthz(healthy, unhealthy)
		s.Equal(http.StatusServiceUnavailable, response.Code)
		s.JSONEq(`{"status":"degraded"}`, response.Body.String())
	})
}
