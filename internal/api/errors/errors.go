// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeConflict             = "CONFLICT"
	CodeSessionConflict      = "SESSION_CONFLICT"
	CodeNoEditSession        = "NO_EDIT_SESSION"
	CodeInvariantViolation   = "INVARIANT_VIOLATION"
	CodeDirectoryUnavailable = "DIRECTORY_UNAVAILABLE"
	CodeNotConfigured        = "NOT_CONFIGURED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт состояния.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// SessionConflict — 409 сессия редактирования сменилась (устаревший session_id).
func SessionConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeSessionConflict, message)
}

// NoEditSession — 409 операция требует открытой сессии редактирования.
func NoEditSession(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeNoEditSession, message)
}

// InvariantViolation — 422 изменение удалило бы последнего члена категории.
func InvariantViolation(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeInvariantViolation, message)
}

// DirectoryUnavailable — 502 каталог пользователей недоступен или отклонил запрос.
func DirectoryUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeDirectoryUnavailable, message)
}

// NotConfigured — 503 функция отключена конфигурацией.
func NotConfigured(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeNotConfigured, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
