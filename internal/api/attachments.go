package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteml/internal/noteservice"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ServeAttachment handles GET /attachments/{hash}.
// Payloads are content addressed so responses are cacheable forever.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(chi.URLParam(r, "hash"))
	etag := `"` + hash + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	data, err := h.svc.Attachment(r.Context(), hash)
	if err != nil {
		writeServiceError(w, "serve attachment", hash, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AttachmentUsers handles GET /attachments/{hash}/notes.
//
//	@Summary		List notes that use a payload
//	@Tags			resources
//	@Produce		json
//	@Param			hash	path		string	true	"Payload MD5"
//	@Success		200		{object}	AttachmentUsersResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments/{hash}/notes [get]
func (h *Handler) AttachmentUsers(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(chi.URLParam(r, "hash"))
	paths, err := h.svc.AttachmentUsers(r.Context(), hash)
	if err != nil {
		writeServiceError(w, "attachment users", hash, err)
		return
	}
	writeJSON(w, http.StatusOK, AttachmentUsersResponse{Hash: hash, Notes: paths})
}

// readUpload reads the "file" field of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) (noteservice.ResourceInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return noteservice.ResourceInput{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return noteservice.ResourceInput{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return noteservice.ResourceInput{}, false
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("file is empty"))
		return noteservice.ResourceInput{}, false
	}

	// An explicit form value wins over the part header; the service
	// sniffs the payload when both are empty.
	mt := r.FormValue("mime")
	if mt == "" {
		mt = header.Header.Get("Content-Type")
	}
	if mt == "application/octet-stream" {
		mt = ""
	}
	if mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			mt = parsed
		}
	}
	return noteservice.ResourceInput{Mime: mt, FileName: header.Filename, Data: data}, true
}

// AddResource handles POST /api/resources/* (multipart/form-data, field "file").
//
//	@Summary		Attach a resource to a note
//	@Tags			resources
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			path		path		string	true	"Note path"
//	@Param			file		formData	file	true	"Payload"
//	@Param			embed		formData	bool	false	"Append a media tag to the note"
//	@Param			If-Match	header		string	false	"Bundle checksum"
//	@Success		201			{object}	AddResourceResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resources/{path} [post]
func (h *Handler) AddResource(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	in, ok := readUpload(w, r)
	if !ok {
		return
	}
	embed, _ := strconv.ParseBool(r.FormValue("embed"))

	note, res, err := h.svc.AddResource(r.Context(), path, in, embed, ifMatch(r))
	if err != nil {
		writeServiceError(w, "add resource", path, err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusCreated, AddResourceResponse{Note: note, Resource: res})
}

// UpdateResources handles PUT /api/resources/*.
//
// A multipart body with an "id" field replaces that resource's payload.
// A JSON body remaps media references between attached resources.
//
//	@Summary		Replace or remap note resources
//	@Tags			resources
//	@Accept			json,multipart/form-data
//	@Produce		json
//	@Param			path		path		string					true	"Note path"
//	@Param			body		body		RemapResourcesRequest	false	"Id remapping"
//	@Param			If-Match	header		string					false	"Bundle checksum"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resources/{path} [put]
func (h *Handler) UpdateResources(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		in, ok := readUpload(w, r)
		if !ok {
			return
		}
		id := r.FormValue("id")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'id' field in multipart form"))
			return
		}
		note, err := h.svc.ReplaceResource(r.Context(), path, id, in, ifMatch(r))
		if err != nil {
			writeServiceError(w, "replace resource", path, err)
			return
		}
		w.Header().Set("ETag", `"`+note.Checksum+`"`)
		writeJSON(w, http.StatusOK, note)
		return
	}

	var req RemapResourcesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 && !req.DeleteMissing {
		writeJSON(w, http.StatusBadRequest, errorBody("ids are required"))
		return
	}
	note, err := h.svc.RemapResources(r.Context(), path, req.IDs, req.DeleteMissing, ifMatch(r))
	if err != nil {
		writeServiceError(w, "remap resources", path, err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeleteResources handles DELETE /api/resources/*.
//
//	@Summary		Remove resources from a note
//	@Tags			resources
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string					true	"Note path"
//	@Param			body		body		DeleteResourcesRequest	true	"Resource ids"
//	@Param			If-Match	header		string					false	"Bundle checksum"
//	@Success		200			{object}	NoteDetail
//	@Security		BearerAuth
//	@Router			/resources/{path} [delete]
func (h *Handler) DeleteResources(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req DeleteResourcesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("ids are required"))
		return
	}
	note, err := h.svc.DeleteResources(r.Context(), path, req.IDs, ifMatch(r))
	if err != nil {
		writeServiceError(w, "delete resources", path, err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// SyncResources handles POST /api/sync/*.
//
//	@Summary		Renumber media tags against the resource list
//	@Tags			resources
//	@Produce		json
//	@Param			path		path		string	true	"Note path"
//	@Param			If-Match	header		string	false	"Bundle checksum"
//	@Success		200			{object}	SyncResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync/{path} [post]
func (h *Handler) SyncResources(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, left, err := h.svc.SyncResources(r.Context(), path, ifMatch(r))
	if err != nil {
		writeServiceError(w, "sync resources", path, err)
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, SyncResponse{Note: note, Leftover: left})
}

// Integrity handles GET /api/integrity/*.
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		h.BrokenNotes(w, r)
		return
	}
	report, err := h.svc.Integrity(r.Context(), path)
	if err != nil {
		writeServiceError(w, "integrity", path, err)
		return
	}
	writeJSON(w, http.StatusOK, IntegrityResponse{
		Path:     path,
		OK:       report.OK(),
		Dangling: nonNil(report.Dangling),
		Orphans:  nonNil(report.Orphans),
	})
}

// BrokenNotes handles GET /api/integrity.
func (h *Handler) BrokenNotes(w http.ResponseWriter, r *http.Request) {
	paths, err := h.svc.BrokenNotes(r.Context())
	if err != nil {
		writeServiceError(w, "broken notes", "", err)
		return
	}
	writeJSON(w, http.StatusOK, BrokenNotesResponse{Notes: paths})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
