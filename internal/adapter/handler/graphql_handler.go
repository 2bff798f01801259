package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/graphql-crm/internal/core/domain"
	"github.com/rl1809/graphql-crm/internal/core/service"
)

const maxRequestBytes = 1 << 20

// Error codes surfaced in extensions.code of a GraphQL error.
const (
	CodeDuplicateEmail = "DUPLICATE_EMAIL"
	CodeInvalidFormat  = "INVALID_FORMAT"
	CodeInvalidValue   = "INVALID_VALUE"
	CodeNotFound       = "NOT_FOUND"
	CodePartialMatch   = "PARTIAL_MATCH"
	CodeInternal       = "INTERNAL"
)

var errorCodes = map[error]string{
	domain.ErrDuplicateEmail: CodeDuplicateEmail,
	domain.ErrInvalidFormat:  CodeInvalidFormat,
	domain.ErrInvalidValue:   CodeInvalidValue,
	domain.ErrNotFound:       CodeNotFound,
	domain.ErrPartialMatch:   CodePartialMatch,
}

// codedError is returned from resolvers; graphql-go copies Extensions()
// into the formatted error.
type codedError struct {
	msg  string
	code string
}

func (e *codedError) Error() string { return e.msg }

func (e *codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type GraphQLHandler struct {
	mutations *service.MutationService
	queries   *service.QueryService
	logger    logrus.FieldLogger
	schema    graphql.Schema
}

func NewGraphQLHandler(mutations *service.MutationService, queries *service.QueryService, logger logrus.FieldLogger) (*GraphQLHandler, error) {
	h := &GraphQLHandler{
		mutations: mutations,
		queries:   queries,
		logger:    logger,
	}

	schema, err := h.buildSchema()
	if err != nil {
		return nil, errors.Wrap(err, "build graphql schema")
	}
	h.schema = schema
	return h, nil
}

// Execute runs a single GraphQL operation against the schema.
func (h *GraphQLHandler) Execute(ctx context.Context, req GraphQLRequest) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})
}

func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req GraphQLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"errors": []map[string]string{{"message": "invalid request body"}},
		})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"errors": []map[string]string{{"message": "query is required"}},
		})
		return
	}

	// Resolver errors are part of a 200 response, as GraphQL clients expect.
	writeJSON(w, http.StatusOK, h.Execute(r.Context(), req))
}

// resolveError maps a service error onto a coded GraphQL error. Errors with
// no domain kind are logged and replaced by a generic message.
func (h *GraphQLHandler) resolveError(ctx context.Context, field string, err error) error {
	if code, ok := errorCodes[domain.Kind(err)]; ok {
		return &codedError{msg: domainMessage(err), code: code}
	}

	h.logger.WithFields(logrus.Fields{
		"field": field,
		"error": err,
	}).Error("graphql resolver failed")
	return &codedError{msg: "internal error", code: CodeInternal}
}

// domainMessage strips wrapping context so clients see only the message the
// domain produced.
func domainMessage(err error) string {
	kind := domain.Kind(err)
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Unwrap(e) == kind {
			return e.Error()
		}
	}
	return err.Error()
}
