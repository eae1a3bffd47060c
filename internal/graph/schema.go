// Package graph serves the GraphQL API over HTTP.
package graph

import (
	"context"
	_ "embed"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog/log"

	"meeting-scheduler-api/internal/handler"
	"meeting-scheduler-api/internal/middleware"
)

//go:embed schema.graphql
var schemaSDL string

const maxDepth = 10

// NewSchema parses the schema and binds it to h. It fails if any field has no resolver.
func NewSchema(h *handler.Handler) (*graphql.Schema, error) {
	s, err := graphql.ParseSchema(schemaSDL, &Resolver{h: h},
		graphql.MaxDepth(maxDepth),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

type panicLogger struct{}

func (panicLogger) LogPanic(ctx context.Context, value interface{}) {
	log.Error().
		Str("request_id", middleware.RequestIDFrom(ctx)).
		Interface("panic", value).
		Msg("graphql resolver panic")
}
