// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes and user-facing messages.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"carteira/internal/core"
	"carteira/internal/ingest"
	applog "carteira/internal/log"
	"carteira/internal/recurrence"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// StatusCode returns the status the builder will write.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Erro interno."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// errorMapping ties a sentinel to its status and message. Checked in order.
var errorMappings = []struct {
	target    error
	status    int
	message   string
	errorType string
}{
	{core.ErrNotFound, http.StatusNotFound, "Não encontrado.", applog.ErrorTypeNotFound},
	{ingest.ErrUnsupportedFile, http.StatusBadRequest, "Formato de arquivo não suportado. Envie um arquivo .xlsx ou .csv.", applog.ErrorTypeIngestion},
	{ingest.ErrEmptySheet, http.StatusUnprocessableEntity, "A planilha está vazia.", applog.ErrorTypeIngestion},
	{ingest.ErrNoValidRows, http.StatusUnprocessableEntity, "Nenhuma linha válida encontrada na planilha.", applog.ErrorTypeIngestion},
	{core.ErrInvalidMonth, http.StatusBadRequest, "Mês inválido. Use o formato AAAA-MM.", applog.ErrorTypeValidation},
	{core.ErrEmptyName, http.StatusUnprocessableEntity, "O nome do conjunto de dados é obrigatório.", applog.ErrorTypeValidation},
	{core.ErrInvalidDate, http.StatusUnprocessableEntity, "Data inválida. Use o formato AAAA-MM-DD.", applog.ErrorTypeValidation},
	{core.ErrInvalidAmount, http.StatusUnprocessableEntity, "Valor inválido.", applog.ErrorTypeValidation},
	{core.ErrInvalidType, http.StatusUnprocessableEntity, "Tipo inválido. Use income ou expense.", applog.ErrorTypeValidation},
	{core.ErrDescriptionTooLong, http.StatusUnprocessableEntity, "Descrição muito longa (máximo 200 caracteres).", applog.ErrorTypeValidation},
	{core.ErrConflictingKind, http.StatusUnprocessableEntity, "Uma transação fixa não pode ser repetida.", applog.ErrorTypeValidation},
	{core.ErrInvalidInstallment, http.StatusUnprocessableEntity, "Parcelamento inválido.", applog.ErrorTypeValidation},
	{recurrence.ErrUnknownUnit, http.StatusUnprocessableEntity, "Unidade de repetição inválida.", applog.ErrorTypeValidation},
	{recurrence.ErrTooManyInstallments, http.StatusUnprocessableEntity, fmt.Sprintf("Número de repetições acima do máximo (%d).", recurrence.MaxInstallments), applog.ErrorTypeValidation},
	{core.ErrDuplicateID, http.StatusConflict, "Transação já existe.", applog.ErrorTypeConflict},
}

// ErrorFor maps err onto a response. Unknown errors become a 500 whose
// message reveals nothing; the second result is the error category to log.
func ErrorFor(err error) (*JSONResponseBuilder, string) {
	var missing *ingest.MissingColumnsError
	if errors.As(err, &missing) {
		msg := "Colunas obrigatórias ausentes: " + strings.Join(missing.Columns, ", ") + "."
		return UnprocessableEntityError(msg), applog.ErrorTypeIngestion
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		msg := fmt.Sprintf("Arquivo muito grande (máximo %d bytes).", tooLarge.Limit)
		return ErrorResponse(http.StatusRequestEntityTooLarge, msg), applog.ErrorTypeValidation
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return ErrorResponse(m.status, m.message), m.errorType
		}
	}
	return InternalServerError("Erro interno. Tente novamente mais tarde."), applog.ErrorTypeInternal
}
