package handler

//go:generate mockgen -source=handler.go -destination=mocks/identity-mocks.go -package=mocks Service,Reconciler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"idem/internal/identity/handler/mocks"
	"idem/internal/identity/models"
	"idem/internal/identity/reconcile"
	"idem/internal/identity/validation"
	dErrors "idem/pkg/domain-errors"
)

type HandlerSuite struct {
	suite.Suite

	service    *mocks.MockService
	reconciler *mocks.MockReconciler
	router     chi.Router
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)

	s.service = mocks.NewMockService(ctrl)
	s.reconciler = mocks.NewMockReconciler(ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, s.reconciler, logger)

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestParsePayload() {
	s.service.EXPECT().
		ParsePayload("identity:alice@example.com").
		Return(models.AttributeSet{Email: "alice@example.com"})

	rec := s.do(http.MethodPost, "/payloads/parse", payloadRequest{Payload: "identity:alice@example.com"})
	s.Equal(http.StatusOK, rec.Code)

	var attrs models.AttributeSet
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &attrs))
	s.Equal("alice@example.com", attrs.Email)
}

func (s *HandlerSuite) TestValidatePayload() {
	s.Run("valid", func() {
		s.service.EXPECT().ValidatePayload("identity:alice@example.com").Return(nil)

		rec := s.do(http.MethodPost, "/payloads/validate", payloadRequest{Payload: "identity:alice@example.com"})
		s.Equal(http.StatusOK, rec.Code)

		var resp validatePayloadResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Valid)
		s.Empty(resp.Error)
	})

	s.Run("rejected", func() {
		s.service.EXPECT().
			ValidatePayload("short").
			Return(dErrors.New(dErrors.CodeValidation, "payload too short: minimum 10 characters"))

		rec := s.do(http.MethodPost, "/payloads/validate", payloadRequest{Payload: "short"})
		s.Equal(http.StatusOK, rec.Code)

		var resp validatePayloadResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.False(resp.Valid)
		s.Contains(resp.Error, "too short")
	})
}

func (s *HandlerSuite) TestIngest() {
	s.Run("created", func() {
		s.service.EXPECT().
			Ingest(gomock.Any(), "identity:alice@example.com").
			Return(&models.IdentityRecord{ID: "rec-1", Email: "alice@example.com"}, nil)

		rec := s.do(http.MethodPost, "/identities", payloadRequest{Payload: "identity:alice@example.com"})
		s.Equal(http.StatusCreated, rec.Code)

		var record models.IdentityRecord
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &record))
		s.Equal("rec-1", record.ID)
	})

	s.Run("rejected payload", func() {
		s.service.EXPECT().
			Ingest(gomock.Any(), "short").
			Return(nil, dErrors.New(dErrors.CodeValidation, "payload too short"))

		rec := s.do(http.MethodPost, "/identities", payloadRequest{Payload: "short"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid body", func() {
		req := httptest.NewRequest(http.MethodPost, "/identities", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGet() {
	s.Run("found", func() {
		s.service.EXPECT().
			Get(gomock.Any(), "rec-1").
			Return(&models.IdentityRecord{ID: "rec-1", Name: "Alice"}, nil)

		rec := s.do(http.MethodGet, "/identities/rec-1", nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("not found", func() {
		s.service.EXPECT().
			Get(gomock.Any(), "missing").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "identity missing not found"))

		rec := s.do(http.MethodGet, "/identities/missing", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestDelete() {
	s.service.EXPECT().Delete(gomock.Any(), "rec-1").Return(nil)

	rec := s.do(http.MethodDelete, "/identities/rec-1", nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestValidateStored() {
	s.service.EXPECT().
		Validate(gomock.Any(), "rec-1").
		Return(&models.ValidationResult{IsValid: true, Score: 85}, nil)

	rec := s.do(http.MethodGet, "/identities/rec-1/validation", nil)
	s.Equal(http.StatusOK, rec.Code)

	var result models.ValidationResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.True(result.IsValid)
	s.Equal(85, result.Score)
}

func (s *HandlerSuite) TestValidateBatch() {
	s.service.EXPECT().
		ValidateBatch(gomock.Any(), []string{"a", "b"}).
		Return(
			[]models.ValidationResult{{IsValid: true, Score: 90}, {Score: 30}},
			&validation.BatchSummary{Total: 2, Valid: 1, Invalid: 1, AverageScore: 60},
			nil,
		)

	rec := s.do(http.MethodPost, "/identities/validate-batch", validateBatchRequest{IDs: []string{"a", "b"}})
	s.Equal(http.StatusOK, rec.Code)

	var resp validateBatchResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.Results, 2)
	s.Equal(2, resp.Summary.Total)
}

func (s *HandlerSuite) TestReconcile() {
	s.Run("merged", func() {
		s.reconciler.EXPECT().
			Reconcile(gomock.Any(), "rec-1").
			Return(&reconcile.Result{
				Identity:           &models.IdentityRecord{ID: "rec-1", IsVerified: true},
				MatchedCredentials: 2,
			}, nil)

		rec := s.do(http.MethodPost, "/identities/rec-1/reconcile", nil)
		s.Equal(http.StatusOK, rec.Code)

		var resp reconcileResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Success)
		s.Require().NotNil(resp.Identity)
		s.True(resp.Identity.IsVerified)
	})

	s.Run("not found", func() {
		s.reconciler.EXPECT().
			Reconcile(gomock.Any(), "missing").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "identity missing not found"))

		rec := s.do(http.MethodPost, "/identities/missing/reconcile", nil)
		s.Equal(http.StatusNotFound, rec.Code)

		var resp reconcileResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.False(resp.Success)
		s.Contains(resp.Error, "not found")
	})
}

func (s *HandlerSuite) TestPresentation() {
	s.Run("selective", func() {
		s.reconciler.EXPECT().
			BuildPresentation(gomock.Any(), "rec-1", []string{"name"}).
			Return(&models.Presentation{Holder: "did:idem:holder"}, nil)

		rec := s.do(http.MethodPost, "/identities/rec-1/presentations", presentationRequest{Attributes: []string{"name"}})
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("empty body means full presentation", func() {
		s.reconciler.EXPECT().
			BuildPresentation(gomock.Any(), "rec-1", nil).
			Return(&models.Presentation{Holder: "did:idem:holder"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/identities/rec-1/presentations", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusCreated, rec.Code)
	})
}

func (s *HandlerSuite) TestImportCredential() {
	s.Run("imported", func() {
		s.service.EXPECT().
			ImportCredential(gomock.Any(), "https://issuer.example.com/cred").
			Return(&models.Credential{ID: "urn:uuid:cred-1"}, nil)

		rec := s.do(http.MethodPost, "/credentials/import", importCredentialRequest{URL: "https://issuer.example.com/cred"})
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("missing url", func() {
		rec := s.do(http.MethodPost, "/credentials/import", importCredentialRequest{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}
