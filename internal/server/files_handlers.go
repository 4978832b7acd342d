// Package server exposes the REST handlers for sharing files into rooms,
// groups and private conversations.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
	"github.com/Tyrowin/ichat/internal/files"
)

const multipartMemory = 1 << 20

type uploadResponse struct {
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

type listResponse struct {
	Files []files.Listing `json:"files"`
}

type accessControl struct {
	Default files.Visibility            `json:"default"`
	Users   map[string]files.Permission `json:"users"`
}

type accessResponse struct {
	Message       string            `json:"message,omitempty"`
	Filename      string            `json:"filename"`
	Owner         string            `json:"owner"`
	AccessControl accessControl     `json:"accessControl"`
	Rejected      []files.Rejection `json:"rejected,omitempty"`
}

func newAccessResponse(rec files.Record) accessResponse {
	users := rec.Overrides
	if users == nil {
		users = map[string]files.Permission{}
	}
	return accessResponse{
		Filename:      rec.ID,
		Owner:         rec.Owner,
		AccessControl: accessControl{Default: rec.Visibility, Users: users},
	}
}

// requireIdentity resolves the caller or writes a 401. Callers ranked below
// the User role get a 403.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, err := s.identify(r)
	if err != nil || id == nil {
		writeMessage(w, s.log, http.StatusUnauthorized, "Authentication required")
		return auth.Identity{}, false
	}
	if !id.Role.AtLeast(auth.RoleUser) {
		s.log.Warn("file request below required role",
			zap.String("user", id.Username),
			zap.String("role", string(id.Role)))
		writeMessage(w, s.log, http.StatusForbidden, "Insufficient permissions")
		return auth.Identity{}, false
	}
	return *id, true
}

// writeFileError maps file service errors onto HTTP responses.
func (s *Server) writeFileError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	msg := "Error processing file request"
	switch {
	case errors.Is(err, files.ErrNotFound):
		status, msg = http.StatusNotFound, "File not found"
	case errors.Is(err, files.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "Authentication required to access this file"
	case errors.Is(err, files.ErrForbidden):
		status, msg = http.StatusForbidden, "You do not have permission to "+op+" this file"
	case errors.Is(err, files.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, files.ErrEmptyUpload):
		status, msg = http.StatusBadRequest, "No file uploaded"
	case errors.Is(err, files.ErrInvalidContext):
		status, msg = http.StatusBadRequest, "Invalid chat context"
	case errors.Is(err, files.ErrInvalidName):
		status, msg = http.StatusBadRequest, "Invalid file name"
	default:
		s.log.Error("file request failed", zap.String("op", op), zap.Error(err))
	}
	writeMessage(w, s.log, status, msg)
}

// UploadHandler stores a multipart upload and announces it to its chat.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	who, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if !s.uploads.Allow(clientIP(r)) {
		writeMessage(w, s.log, http.StatusTooManyRequests, "Too many uploads, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.files.MaxSize()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeFileError(w, "upload", files.ErrTooLarge)
			return
		}
		writeMessage(w, s.log, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeFileError(w, "upload", files.ErrEmptyUpload)
		return
	}
	defer file.Close()

	private, _ := strconv.ParseBool(r.FormValue("private"))
	rec, err := s.files.Upload(r.Context(), files.UploadRequest{
		Owner:    who,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Room:     r.FormValue("room"),
		Context: files.ChatContext{
			Type:   files.ChatType(r.FormValue("chatType")),
			Target: r.FormValue("chatTarget"),
		},
		Private: private,
		Body:    file,
	})
	if err != nil {
		s.writeFileError(w, "upload", err)
		return
	}

	writeJSON(w, s.log, http.StatusCreated, uploadResponse{
		Message:      "File uploaded successfully",
		Filename:     rec.ID,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
	})
}

// ListHandler lists the files of a chat context visible to the caller.
func (s *Server) ListHandler(w http.ResponseWriter, r *http.Request) {
	who, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list := s.files.List(r.Context(), who, q.Get("room"), files.ChatContext{
		Type:   files.ChatType(q.Get("chatType")),
		Target: q.Get("chatTarget"),
	})
	writeJSON(w, s.log, http.StatusOK, listResponse{Files: list})
}

// DownloadHandler streams a file. Public files need no token.
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	who, _ := s.identify(r)
	rec, body, err := s.files.Open(r.Context(), r.PathValue("id"), who)
	if err != nil {
		s.writeFileError(w, "access", err)
		return
	}
	defer body.Close()

	contentType := rec.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": rec.OriginalName}))
	if _, err := io.Copy(w, body); err != nil {
		s.log.Debug("download interrupted", zap.String("file", rec.ID), zap.Error(err))
	}
}

// DeleteHandler removes a file owned by the caller, or any file for admins.
func (s *Server) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	who, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if _, err := s.files.Delete(r.Context(), r.PathValue("id"), who); err != nil {
		s.writeFileError(w, "delete", err)
		return
	}
	writeMessage(w, s.log, http.StatusOK, "File deleted successfully")
}

// AccessHandler returns a file's access list to its owner or an admin.
func (s *Server) AccessHandler(w http.ResponseWriter, r *http.Request) {
	who, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	rec, err := s.files.Access(r.Context(), r.PathValue("id"), who)
	if err != nil {
		s.writeFileError(w, "view access information for", err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, newAccessResponse(rec))
}

// UpdateAccessHandler changes a file's default visibility and overrides.
func (s *Server) UpdateAccessHandler(w http.ResponseWriter, r *http.Request) {
	who, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var upd files.AccessUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&upd); err != nil {
		writeMessage(w, s.log, http.StatusBadRequest, "Invalid access update")
		return
	}
	rec, rejected, err := s.files.UpdateAccess(r.Context(), r.PathValue("id"), who, upd)
	if err != nil {
		s.writeFileError(w, "update access for", err)
		return
	}
	resp := newAccessResponse(rec)
	resp.Message = "File access updated successfully"
	resp.Rejected = rejected
	writeJSON(w, s.log, http.StatusOK, resp)
}
