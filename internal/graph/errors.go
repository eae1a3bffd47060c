package graph

import (
	"context"

	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/apperr"
	"meeting-scheduler-api/internal/middleware"
)

const (
	codeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	maskedMessage        = "Internal server error"
)

// resolverError is what resolvers hand back to graphql-go: the client-facing
// message plus the extensions map it copies into the response.
type resolverError struct {
	msg string
	ext map[string]interface{}
}

func (e *resolverError) Error() string                      { return e.msg }
func (e *resolverError) Extensions() map[string]interface{} { return e.ext }

// fail converts a handler error for the wire. Internal causes are logged and
// replaced with a generic message.
func fail(ctx context.Context, err error) error {
	ae := apperr.From(err)
	rid := middleware.RequestIDFrom(ctx)
	if ae.Code == apperr.CodeInternal {
		log.Error().Err(ae.Err).Str("request_id", rid).Msg("resolver failed")
	}
	ext := ae.Extensions()
	if rid != "" {
		ext["requestId"] = rid
	}
	return &resolverError{msg: ae.Message, ext: ext}
}

// decorate gives every error in a response a code and the request id.
// Errors without a path never reached a resolver, so they are query
// validation failures; errors with a path but no code came from a resolver
// that did not go through fail, and are masked.
func decorate(ctx context.Context, errs []*gqlerrors.QueryError) {
	rid := middleware.RequestIDFrom(ctx)
	for _, e := range errs {
		if e.Extensions == nil {
			e.Extensions = map[string]interface{}{}
		}
		if _, ok := e.Extensions["code"]; !ok {
			if len(e.Path) == 0 {
				e.Extensions["code"] = codeValidationFailed
			} else {
				log.Error().Str("request_id", rid).Interface("path", e.Path).Str("error", e.Message).Msg("unhandled resolver error")
				e.Extensions["code"] = string(apperr.CodeInternal)
				e.Message = maskedMessage
			}
		}
		if rid != "" {
			e.Extensions["requestId"] = rid
		}
	}
}
