package handler

import (
	"time"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/infra/buildinfo"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// FamilyStatus is the current meta record of one family.
type FamilyStatus struct {
	Version      uint64 `json:"version"`
	LastChange   string `json:"last_change,omitempty"`
	ChangeLogLen int    `json:"change_log_len"`
}

// StorageSize reports engine sizes in bytes.
type StorageSize struct {
	LSM      int64 `json:"lsm"`
	ValueLog int64 `json:"value_log"`
}

// StatusResponse is the response body for GET /v1/status.
type StatusResponse struct {
	Status      string                         `json:"status"`
	Time        string                         `json:"time"`
	Timezone    string                         `json:"timezone"`
	Families    map[domain.Family]FamilyStatus `json:"families"`
	Persistence storage.PersistenceStatus      `json:"persistence"`
	Storage     StorageSize                    `json:"storage"`
	Build       buildinfo.Info                 `json:"build"`
}

// MetaHistoryResponse is the response body for GET /v1/meta/{family}.
type MetaHistoryResponse struct {
	Family  domain.Family       `json:"family"`
	Version uint64              `json:"version"`
	History []domain.MetaRecord `json:"history"`
}

// SweepRequest is the optional request body for POST /v1/sweep.
type SweepRequest struct {
	Codes []int64 `json:"codes,omitempty"`
}
