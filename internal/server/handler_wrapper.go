// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"reflect"
	"strconv"
	"strings"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/server/handlers"
	"github.com/maruel/markdb/internal/server/ratelimit"
	"github.com/maruel/markdb/internal/server/reqctx"
)

var errBadAuthHeader = errors.New("invalid authorization header")

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`
// and query parameters with `query:"name"`.
// *In must implement dto.Validatable.
//
// Authentication is optional: a valid bearer token puts the user ID in the
// context, an invalid one is rejected with 401. *Out may implement
// dto.StatusCoder to answer with something else than 200.
//
// Example:
//
//	type GetTagRequest struct {
//	    ID ksid.ID `path:"id"`
//	}
//
//	func (h *Handler) GetTag(ctx context.Context, req *GetTagRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := addRequestMetadataToContext(r.Context(), r, cfg)

		if tier := limiters.Match(r.Method, r.URL.Path); tier != nil {
			var ok bool
			if w, ok = checkRateLimit(w, tier, reqctx.ClientIP(ctx)); !ok {
				return
			}
		}

		ctx, err := authenticate(ctx, r, svc)
		if err != nil {
			slog.WarnContext(ctx, "Rejected bearer token", "err", err)
			writeAPIError(w, dto.Unauthorized("Invalid or expired token"))
			return
		}

		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, cfg) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			handleValidationError(ctx, w, err)
			return
		}

		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// addRequestMetadataToContext adds the client IP to the context.
func addRequestMetadataToContext(ctx context.Context, r *http.Request, cfg *handlers.Config) context.Context {
	var trusted []netip.Prefix
	if cfg != nil {
		trusted = cfg.TrustedProxies
	}
	return reqctx.WithClientIP(ctx, reqctx.GetClientIP(r, trusted))
}

// authenticate verifies the bearer token, if any, and adds its user to the
// context.
func authenticate(ctx context.Context, r *http.Request, svc *handlers.Services) (context.Context, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ctx, nil
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || svc.Tokens == nil {
		return ctx, errBadAuthHeader
	}
	id, err := svc.Tokens.Verify(token)
	if err != nil {
		return ctx, err
	}
	// The user may have been deleted since the token was issued.
	if _, err := svc.Store.Users().Get(ctx, id); err != nil {
		return ctx, err
	}
	return reqctx.WithUserID(ctx, id), nil
}

// checkRateLimit checks rate limit and wraps the response writer if needed.
// Returns the (possibly wrapped) writer and whether the request should proceed.
func checkRateLimit(w http.ResponseWriter, tier *ratelimit.Tier, identifier string) (http.ResponseWriter, bool) {
	key := ratelimit.BuildKey(tier.Scope, identifier, tier.Name)
	result := tier.Limiter.Allow(key)
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeAPIError(w, dto.RateLimitExceeded(int(result.RetryAfter.Seconds())))
		return w, false
	}
	return w, true
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, cfg *handlers.Config) bool {
	if cfg != nil && cfg.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeAPIError(w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeAPIError(w, dto.BadRequest("Failed to read request body"))
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	d := json.NewDecoder(bytes.NewReader(body))
	d.DisallowUnknownFields()
	if err := d.Decode(input); err != nil {
		slog.WarnContext(ctx, "Failed to decode request body", "err", err)
		writeAPIError(w, dto.BadRequest("Invalid request body"))
		return false
	}
	return true
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		var ewsErr dto.ErrorWithStatus
		if !errors.As(err, &ewsErr) {
			ewsErr = dto.InternalWithError("Internal server error", err)
		}
		if ewsErr.StatusCode() >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Handler error", "err", err, "code", ewsErr.Code())
		} else {
			slog.InfoContext(ctx, "Handler error", "err", err, "statusCode", ewsErr.StatusCode(), "code", ewsErr.Code())
		}
		writeAPIError(w, ewsErr)
		return
	}
	statusCode := http.StatusOK
	if sc, ok := any(output).(dto.StatusCoder); ok {
		statusCode = sc.StatusCode()
	}
	writeJSON(ctx, w, statusCode, output)
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var ewsErr dto.ErrorWithStatus
	if !errors.As(err, &ewsErr) {
		ewsErr = dto.BadRequest(err.Error())
	}
	slog.InfoContext(ctx, "Validation error", "err", err, "code", ewsErr.Code())
	writeAPIError(w, ewsErr)
}

// writeAPIError writes err as a dto.ErrorResponse.
func writeAPIError(w http.ResponseWriter, err dto.ErrorWithStatus) {
	resp := dto.ErrorResponse{
		Error:  err.Error(),
		Code:   err.Code(),
		Reason: err.Reason(),
	}
	if d := err.Details(); len(d) != 0 {
		resp.Details = d
	}
	writeJSON(context.Background(), w, err.StatusCode(), resp)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
//
// An unparsable ID leaves the field zero, which handlers report as not found.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structOf(input)
	if !ok {
		return
	}
	typ := elem.Type()
	idType := reflect.TypeFor[ksid.ID]()
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
		case field.Type == idType:
			if id, err := ksid.Parse(paramValue); err == nil {
				elem.Field(i).Set(reflect.ValueOf(id))
			}
		case field.Type.Kind() == reflect.String:
			elem.Field(i).SetString(paramValue)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structOf(input)
	if !ok {
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
		default:
			if u, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
				_ = u.UnmarshalText([]byte(paramValue))
			}
		}
	}
}

func structOf(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}
