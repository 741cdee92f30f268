package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/querydesk/types"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	// DocumentID 结构性摄入失败时指明被拒绝的文档
	DocumentID string `json:"document_id,omitempty"`
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入成功响应
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	requestID, _ := types.RequestID(r.Context())
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// WriteError 写入错误响应。非结构化错误按内部错误处理。
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	serr, ok := err.(*types.Error)
	if !ok {
		serr = types.NewError(types.ErrInternalError, err.Error())
	}

	status := serr.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(serr.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(serr.Code)),
			zap.String("message", serr.Message),
			zap.Int("status", status),
			zap.Bool("retryable", serr.Retryable),
			zap.Error(serr.Cause),
		)
	}

	requestID, _ := types.RequestID(r.Context())
	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:       string(serr.Code),
			Message:    serr.Message,
			Retryable:  serr.Retryable,
			DocumentID: serr.DocumentID,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, r, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// =============================================================================
// 🔄 错误码到 HTTP 状态码映射
// =============================================================================

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx 客户端错误
	case types.ErrInvalidRequest, types.ErrInvalidDocument:
		return http.StatusBadRequest
	case types.ErrDocumentNotFound:
		return http.StatusNotFound
	case types.ErrNoDocumentsLoaded:
		return http.StatusConflict
	case types.ErrDimensionMismatch, types.ErrModelMismatch:
		return http.StatusUnprocessableEntity

	// 5xx 服务端错误
	case types.ErrEmbeddingProvider:
		return http.StatusBadGateway
	case types.ErrHandlerUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrPersistence, types.ErrInternalError:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 🛡️ 请求验证辅助函数
// =============================================================================

// DecodeJSONBody 解码 JSON 请求体，严格模式拒绝未知字段
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, r, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, r, apiErr, logger)
		return apiErr
	}
	return nil
}
