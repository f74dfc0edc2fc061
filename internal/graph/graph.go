// Package graph exposes the user and codespace workflows as a GraphQL API.
//
// The schema lives in schema.graphql and is compiled into the binary.
// Resolvers are thin: they read the session user from the request context,
// call one service method and convert the result. Workflow errors reach the
// client with their code and field list in the error's "extensions":
//
//	{"message":"Email already exists","path":["createUser"],
//	 "extensions":{"code":"EMAIL_ALREADY_EXISTS",
//	               "errors":[{"field":"email","message":"Email already exists"}]}}
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/sakif/codespaces/internal/service"
	"github.com/sakif/codespaces/internal/session"
)

//go:embed schema.graphql
var schemaSDL string

// maxQueryDepth bounds nested selections. The schema has no recursive types,
// so real queries stay far below it.
const maxQueryDepth = 8

// Resolver is the root of the Query and Mutation types.
type Resolver struct {
	users      *service.UserService
	codespaces *service.CodespaceService
	sessions   *session.Manager
	logger     *slog.Logger
}

// NewResolver wires the root resolver.
func NewResolver(
	users *service.UserService,
	codespaces *service.CodespaceService,
	sessions *session.Manager,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		users:      users,
		codespaces: codespaces,
		sessions:   sessions,
		logger:     logger,
	}
}

// NewSchema parses the schema and binds it to r. A mismatch between
// schema.graphql and the resolver methods fails here, at startup.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaSDL, r,
		graphql.MaxDepth(maxQueryDepth),
		graphql.Logger(panicLogger{logger: r.logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("graph: parsing schema: %w", err)
	}
	return schema, nil
}

// NewHandler returns the HTTP handler for POST /graphql.
// It must run behind session.Manager.Middleware.
func NewHandler(r *Resolver) (http.Handler, error) {
	schema, err := NewSchema(r)
	if err != nil {
		return nil, err
	}
	return &relay.Handler{Schema: schema}, nil
}

// sessionUserID is "" for anonymous requests; the services turn that into
// SESSION_EXPIRED where a login is required.
func sessionUserID(ctx context.Context) string {
	id, _ := session.UserIDFromContext(ctx)
	return id
}

// panicLogger reports resolver panics through slog. graphql-go recovers the
// panic itself and answers with a generic error.
type panicLogger struct {
	logger *slog.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.logger.Error("graphql resolver panicked", slog.Any("panic", value))
}
