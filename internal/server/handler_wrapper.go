// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"

	"github.com/noteleaf/noteleaf/internal/models"
	"github.com/noteleaf/noteleaf/internal/server/dto"
	"github.com/noteleaf/noteleaf/internal/server/ratelimit"
	"github.com/noteleaf/noteleaf/internal/server/reqctx"
)

var (
	errUnauthorized   = errors.New("authorization required")
	errInvalidAuthHdr = errors.New("invalid authorization header")
	errInvalidToken   = errors.New("invalid or expired token")
	errInvalidClaims  = errors.New("invalid token claims")
	errInvalidOwnerID = errors.New("invalid owner ID in token")
)

// addRequestMetadataToContext adds client IP and User-Agent to the context.
func addRequestMetadataToContext(ctx context.Context, r *http.Request) context.Context {
	ctx = reqctx.WithClientIP(ctx, reqctx.GetClientIP(r))
	ctx = reqctx.WithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// validateJWT extracts and verifies the bearer token, returning the owner it
// identifies via the "sub" claim.
func validateJWT(r *http.Request, jwtSecret []byte) (ksid.ID, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return 0, errUnauthorized
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, errInvalidAuthHdr
	}
	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidClaims
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, errInvalidClaims
	}
	ownerID, err := ksid.Parse(sub)
	if err != nil || ownerID.IsZero() {
		return 0, errInvalidOwnerID
	}
	return ownerID, nil
}

// checkRateLimit checks the limiter and wraps the response writer so limit
// headers reach the client. A nil limiter always allows.
func (s *Server) checkRateLimit(w http.ResponseWriter, key string) (http.ResponseWriter, bool) {
	if s.limiter == nil {
		return w, true
	}
	result := s.limiter.Allow(key)
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		return w, false
	}
	return w, true
}

// readAndDecodeBody reads the request body with a size limit and decodes
// JSON into input. Returns false if an error was written to the response.
func (s *Server) readAndDecodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, input any) bool {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apiErr := models.PayloadTooLarge(maxBytesErr.Limit)
			writeErrorResponse(w, apiErr.StatusCode(), apiErr.Code(), apiErr.Error(), apiErr.Details())
			return false
		}
		s.logger.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeValidationFailed, "Failed to read request body", nil)
		return false
	}
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			s.logger.ErrorContext(ctx, "Failed to decode request body", "err", err)
			writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeValidationFailed, "Invalid request body", nil)
			return false
		}
	}
	return true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorCode := models.ErrorCodeInternal
		var details map[string]any

		var ewsErr models.ErrorWithStatus
		if errors.As(err, &ewsErr) {
			statusCode = ewsErr.StatusCode()
			errorCode = ewsErr.Code()
			details = ewsErr.Details()
		}

		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
		writeErrorResponse(w, statusCode, errorCode, err.Error(), details)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// writeErrorResponse writes the standard error body.
func writeErrorResponse(w http.ResponseWriter, statusCode int, code models.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := dto.ErrorResponse{
		Error:   dto.ErrorDetails{Code: code, Message: message},
		Details: details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Wrap wraps an unauthenticated handler function as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In is unmarshalled from JSON. Path parameters are extracted into
// fields tagged `path:"name"`, query parameters into `query:"name"`.
// *In must implement dto.Validatable.
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		var ok bool
		if w, ok = s.checkRateLimit(w, "ip:"+reqctx.GetClientIP(r)); !ok {
			return
		}

		input := new(In)
		if !s.readAndDecodeBody(ctx, w, r, input) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			writeJSONResponse[struct{}](ctx, w, nil, err)
			return
		}

		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps an authenticated handler function as an http.Handler.
// The function must have signature:
// func(context.Context, ksid.ID, *In) (*Out, error) where the ID is the
// authenticated owner. *In must implement dto.Validatable.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, ksid.ID, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r)

		ownerID, err := validateJWT(r, s.jwtSecret)
		if err != nil {
			writeErrorResponse(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, err.Error(), nil)
			return
		}
		ctx = reqctx.WithOwnerID(ctx, ownerID)

		var ok bool
		if w, ok = s.checkRateLimit(w, "owner:"+ownerID.String()); !ok {
			return
		}

		input := new(In)
		if !s.readAndDecodeBody(ctx, w, r, input) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			writeJSONResponse[struct{}](ctx, w, nil, err)
			return
		}

		output, err := fn(ctx, ownerID, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// populatePathParams extracts path parameters into struct fields tagged with
// `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	ksidType := reflect.TypeFor[ksid.ID]()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		switch {
		case field.Type.Kind() == reflect.String:
			elem.Field(i).SetString(paramValue)
		case field.Type == ksidType:
			if id, err := ksid.Parse(paramValue); err == nil {
				elem.Field(i).Set(reflect.ValueOf(id))
			}
		}
	}
}

// populateQueryParams extracts query parameters into struct fields tagged
// with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int:
			if intVal, err := strconv.Atoi(paramValue); err == nil {
				fieldVal.SetInt(int64(intVal))
			}
		}
	}
}
