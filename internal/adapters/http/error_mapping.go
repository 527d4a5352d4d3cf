package httpadapter

import (
	"net/http"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCaseNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
