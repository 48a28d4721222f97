// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"carteira/internal/recurrence"
)

// HeaderUserID identifies the caller. Authentication is delegated to
// whatever sits in front of the server.
const HeaderUserID = "X-User-ID"

const maxJSONBody = 1 << 20

var (
	errEmptyBody     = errors.New("empty request body")
	errTrailingData  = errors.New("unexpected data after JSON body")
	errInvalidUserID = errors.New("invalid " + HeaderUserID + " header")

	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)
)

// ParseMonthParam reads "month" (YYYY-MM) from the query, defaulting to the
// month containing now.
func ParseMonthParam(query url.Values, now time.Time) (recurrence.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return recurrence.MonthOf(now), nil
	}
	return recurrence.ParseMonth(v)
}

// CallerID returns the caller from X-User-ID, or fallback when the header is
// absent. A header that is present but blank or malformed is an error.
func CallerID(r *http.Request, fallback string) (string, error) {
	values := r.Header.Values(HeaderUserID)
	if len(values) == 0 {
		return fallback, nil
	}
	id := strings.TrimSpace(values[0])
	if len(values) > 1 || !userIDPattern.MatchString(id) {
		return "", errInvalidUserID
	}
	return id, nil
}

// DecodeJSON decodes a single JSON value from the body into v, limited to
// maxJSONBody bytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// decodeFailure turns a DecodeJSON error into a response. Domain errors
// raised while unmarshalling keep their mapping; the rest are malformed JSON.
func decodeFailure(err error) (*JSONResponseBuilder, string) {
	resp, errType := ErrorFor(err)
	if resp.StatusCode() != http.StatusInternalServerError {
		return resp, errType
	}
	msg := "JSON inválido."
	if errors.Is(err, errEmptyBody) {
		msg = "Corpo da requisição vazio."
	}
	return BadRequestError(msg), errType
}

// DatasetNameFromFile derives a dataset name from an uploaded file name.
func DatasetNameFromFile(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = sanitizeInput(base)
	if base == "" || base == "." || base == "/" {
		return fmt.Sprintf("Importação %s", time.Now().Format("2006-01-02"))
	}
	return base
}
