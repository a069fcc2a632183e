package handlers

import (
	"net/http"

	"postengine/internal/components"
)

// InternalError handles 500 errors
func (h *BlogHandler) InternalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger(r).Error("500 internal server error", "err", err, "path", r.URL.Path)
	h.renderError(w, r, http.StatusInternalServerError, components.InternalDescription)
}

// NotFound serves the custom 404 page
func (h *BlogHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.logger(r).Debug("404 not found", "path", r.URL.Path, "method", r.Method)
	h.renderError(w, r, http.StatusNotFound, components.NotFoundDescription)
}

func (h *BlogHandler) renderError(w http.ResponseWriter, r *http.Request, code int, description string) {
	h.render(w, r, code, components.ErrorPage(h.Site, code, description))
}
