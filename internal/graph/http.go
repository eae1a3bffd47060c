package graph

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog/hlog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const maxBodyBytes = 1 << 20

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

//go:embed graphiql.html
var graphiqlPage []byte

// Handler executes GraphQL operations sent as a POST JSON body or as GET
// query parameters. GET only runs queries.
type Handler struct {
	schema   *graphql.Schema
	graphiql bool
}

type HandlerOption func(*Handler)

// WithGraphiQL serves the GraphiQL IDE to browsers that GET the endpoint.
func WithGraphiQL(enabled bool) HandlerOption {
	return func(h *Handler) { h.graphiql = enabled }
}

func NewHandler(schema *graphql.Schema, opts ...HandlerOption) *Handler {
	h := &Handler{schema: schema}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.graphiql && r.Method == http.MethodGet && wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	var req request
	switch r.Method {
	case http.MethodPost:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("bad graphql body")
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid variables")
				return
			}
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "Must provide query string.")
		return
	}
	if r.Method == http.MethodGet {
		op, err := operationType(req.Query, req.OperationName)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if op != ast.Query {
			w.Header().Set("Allow", "POST")
			writeError(w, http.StatusMethodNotAllowed, "Can only perform a "+string(op)+" operation from a POST request.")
			return
		}
	}

	resp := h.schema.Exec(r.Context(), req.Query, req.OperationName, req.Variables)
	decorate(r.Context(), resp.Errors)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write graphql response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{
			"message":    msg,
			"extensions": map[string]any{"code": "BAD_REQUEST"},
		}},
	})
}

// operationType reports the kind of operation a GET request would run. An
// operation name that matches nothing is left to the executor to report.
func operationType(query, name string) (ast.Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "", err
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return ast.Query, nil
	}
	return op.Operation, nil
}

// wantsHTML is true for browser navigation; the raw parameter forces JSON.
func wantsHTML(r *http.Request) bool {
	if _, raw := r.URL.Query()["raw"]; raw {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
