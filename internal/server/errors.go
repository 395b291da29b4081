package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/fusionlab/fusionlab/internal/errors"
)

// probeMethods are the verbs any route in this service answers to.
var probeMethods = []string{http.MethodGet, http.MethodPost}

// HandleError writes err as the standard JSON error body.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	HandleError(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
}

// methodNotAllowed answers with an Allow header naming the verbs the path accepts.
func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if allowed := s.allowedMethods(r.URL.Path); len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	HandleError(w, r, apperrors.NewMethodNotAllowedError(
		fmt.Sprintf("Method %s is not allowed for this resource", r.Method)))
}

func (s *Server) allowedMethods(path string) []string {
	var allowed []string
	for _, method := range probeMethods {
		if s.router.Match(chi.NewRouteContext(), method, path) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}
