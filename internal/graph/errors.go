package graph

import (
	"errors"
	"log/slog"

	"github.com/sakif/codespaces/internal/apperror"
)

// resolverError is what resolvers return. graphql-go copies Extensions()
// into the response, but only when the returned error itself has the method,
// so resolvers must return it unwrapped.
type resolverError struct {
	code    apperror.Code
	message string
	fields  []apperror.FieldError
}

func (e *resolverError) Error() string {
	return e.message
}

// Extensions implements graphql-go's extensions interface.
func (e *resolverError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.code)}
	if len(e.fields) > 0 {
		fields := make([]map[string]string, 0, len(e.fields))
		for _, f := range e.fields {
			fields = append(fields, map[string]string{"field": f.Field, "message": f.Message})
		}
		ext["errors"] = fields
	}
	return ext
}

// fail converts any error into a resolverError. Errors without a workflow code
// never reach the client verbatim.
func (r *Resolver) fail(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return &resolverError{code: appErr.Code, message: appErr.Message, fields: appErr.Fields}
	}

	r.logger.Error("unexpected resolver error", slog.String("error", err.Error()))
	return &resolverError{code: apperror.CodeSomethingWentWrong, message: "Something went wrong"}
}
