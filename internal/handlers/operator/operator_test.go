package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/dto"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
)

const payoutID = "0b8c4a52-0000-4000-8000-000000000001"

func NewMock(t *testing.T) (*OperatorHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := New(service)
	defer ctrl.Finish()
	return handler, service
}

func request(body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/operator/payouts/"+payoutID+"/action", r)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", payoutID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func result(outcome payoutservice.Outcome, status domain.PayoutStatus) *payoutservice.TransitionResult {
	return &payoutservice.TransitionResult{
		Outcome: outcome,
		Payout:  &domain.Payout{ID: payoutID, Status: status, RequestedAt: time.Now()},
	}
}

func TestOperatorHandler(t *testing.T) {
	handler, service := NewMock(t)

	tests := []struct {
		name            string
		call            func(w http.ResponseWriter, r *http.Request)
		body            string
		prepareMock     func()
		expectedCode    int
		expectedOutcome string
	}{
		{
			name: "Approve",
			call: handler.Approve,
			prepareMock: func() {
				service.EXPECT().ApprovePayout(gomock.Any(), payoutID).
					Return(result(payoutservice.OutcomeApplied, domain.PayoutProcessing), nil)
			},
			expectedCode:    http.StatusOK,
			expectedOutcome: "APPLIED",
		},
		{
			name: "Complete",
			call: handler.Complete,
			body: `{"external_transaction_id":"wire-42"}`,
			prepareMock: func() {
				service.EXPECT().CompletePayout(gomock.Any(), payoutID, "wire-42").
					Return(result(payoutservice.OutcomeApplied, domain.PayoutCompleted), nil)
			},
			expectedCode:    http.StatusOK,
			expectedOutcome: "APPLIED",
		},
		{
			name: "Complete twice",
			call: handler.Complete,
			body: `{"external_transaction_id":"wire-42"}`,
			prepareMock: func() {
				service.EXPECT().CompletePayout(gomock.Any(), payoutID, "wire-42").
					Return(result(payoutservice.OutcomeAlreadyTerminal, domain.PayoutCompleted), nil)
			},
			expectedCode:    http.StatusOK,
			expectedOutcome: "ALREADY_TERMINAL",
		},
		{
			name: "Complete from pending",
			call: handler.Complete,
			body: `{"external_transaction_id":"wire-42"}`,
			prepareMock: func() {
				service.EXPECT().CompletePayout(gomock.Any(), payoutID, "wire-42").
					Return(nil, payoutservice.ErrInvalidStateTransition)
			},
			expectedCode: http.StatusConflict,
		},
		{
			name:         "Complete without body",
			call:         handler.Complete,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Fail",
			call: handler.Fail,
			body: `{"reason":"account closed"}`,
			prepareMock: func() {
				service.EXPECT().FailPayout(gomock.Any(), payoutID, "account closed").
					Return(result(payoutservice.OutcomeApplied, domain.PayoutFailed), nil)
			},
			expectedCode:    http.StatusOK,
			expectedOutcome: "APPLIED",
		},
		{
			name: "Cancel without body",
			call: handler.Cancel,
			prepareMock: func() {
				service.EXPECT().CancelPayout(gomock.Any(), payoutID, "").
					Return(result(payoutservice.OutcomeApplied, domain.PayoutCancelled), nil)
			},
			expectedCode:    http.StatusOK,
			expectedOutcome: "APPLIED",
		},
		{
			name: "Unknown payout",
			call: handler.Approve,
			prepareMock: func() {
				service.EXPECT().ApprovePayout(gomock.Any(), payoutID).Return(nil, payoutservice.ErrPayoutNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			rec := httptest.NewRecorder()
			tt.call(rec, request(tt.body))

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedOutcome != "" {
				var resp dto.TransitionResultDTO
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.expectedOutcome, resp.Outcome)
				assert.Equal(t, payoutID, resp.Payout.ID)
			}
		})
	}
}
