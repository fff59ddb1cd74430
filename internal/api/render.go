package api

import (
	"bytes"
	"net/http"

	"github.com/starford/noteml/internal/convert"
	"github.com/starford/noteml/internal/htmlutil"
)

// RenderNote handles GET /api/render/*.
//
// mode selects reference (default) or inline rendering. With fragment=1
// only the inner markup of the body element is returned.
//
//	@Summary		Render a note to XHTML
//	@Tags			render
//	@Produce		html
//	@Param			path		path	string	true	"Note path"
//	@Param			mode		query	string	false	"Rendering mode"	Enums(reference, inline)
//	@Param			fragment	query	bool	false	"Return the body content only"
//	@Success		200
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render/{path} [get]
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	mode := h.svc.DefaultMode()
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, ok := convert.ParseMode(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("mode must be reference or inline"))
			return
		}
		mode = m
	}

	var buf bytes.Buffer
	if err := h.svc.RenderHTML(r.Context(), &buf, path, mode); err != nil {
		writeServiceError(w, "render note", path, err)
		return
	}

	if fragment := r.URL.Query().Get("fragment"); fragment == "1" || fragment == "true" {
		body, err := htmlutil.BodyFragment(&buf)
		if err != nil {
			writeServiceError(w, "render fragment", path, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
		return
	}

	w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
