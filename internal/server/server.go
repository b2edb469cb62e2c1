// Package server exposes client workspaces over HTTP.
package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/session"
	"github.com/debemdeboas/quill/internal/workspace"
	"github.com/rs/zerolog"
)

var serverLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	serverLogger = l
}

const DefaultMaxUploadBytes = 10 << 20

type Server struct {
	Registry *Registry

	Events  http.Handler
	Metrics http.Handler
	// Assets serves uploaded files; nil unless assets live on local disk.
	Assets http.Handler

	SecureCookies  bool
	MaxUploadBytes int64
}

type documentView struct {
	model.Document
	CanModify bool `json:"canModify"`
}

type editorView struct {
	Target model.EditingTarget `json:"target"`
	Busy   bool                `json:"busy"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypePlain)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /api/"))
	})

	mux.HandleFunc("GET /api/session", s.withWorkspace(s.serveSession))
	mux.HandleFunc("POST /api/session/register", s.withWorkspace(s.serveRegister))
	mux.HandleFunc("POST /api/session/login", s.withWorkspace(s.serveLogin))
	mux.HandleFunc("POST /api/session/logout", s.withWorkspace(s.serveLogout))

	mux.HandleFunc("GET /api/documents", s.withWorkspace(s.serveDocuments))
	mux.HandleFunc("DELETE /api/documents/{id}", s.withWorkspace(s.serveDelete))

	mux.HandleFunc("GET /api/editor", s.withWorkspace(s.serveEditor))
	mux.HandleFunc("POST /api/editor/create", s.withWorkspace(s.serveBeginCreate))
	mux.HandleFunc("POST /api/editor/edit/{id}", s.withWorkspace(s.serveBeginEdit))
	mux.HandleFunc("POST /api/editor/cancel", s.withWorkspace(s.serveCancel))
	mux.HandleFunc("POST /api/editor/save", s.withWorkspace(s.serveSave))

	if s.Events != nil {
		mux.Handle("GET "+config.EventsUrlPath, s.Events)
	}
	if s.Metrics != nil {
		mux.Handle("GET "+config.MetricsPath, s.Metrics)
	}
	if s.Assets != nil {
		mux.Handle("GET "+config.AssetsUrlPath, http.StripPrefix(config.AssetsUrlPath, s.Assets))
	}

	return cacheIt(secureHeaders(mux))
}

func mustWorkspace(r *http.Request) *workspace.Workspace {
	ws, ok := WorkspaceFromContext(r.Context())
	if !ok {
		panic("server: handler used without withWorkspace")
	}
	return ws
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	writeJSON(w, ws, http.StatusOK, ws.Session.State())
}

func (s *Server) serveRegister(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.Register(r.Context(), r.FormValue("email"), r.FormValue("password"), r.FormValue("display_name"))
	s.syncSessionCookie(w, ws)
	respond(w, ws, ws.Session.State(), err)
}

func (s *Server) serveLogin(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.Login(r.Context(), r.FormValue("email"), r.FormValue("password"))
	s.syncSessionCookie(w, ws)
	respond(w, ws, ws.Session.State(), err)
}

func (s *Server) serveLogout(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.Logout(r.Context())
	s.syncSessionCookie(w, ws)
	respond(w, ws, ws.Session.State(), err)
}

// syncSessionCookie mirrors the workspace's session token into the cookie so
// a fresh workspace can resume it.
func (s *Server) syncSessionCookie(w http.ResponseWriter, ws *workspace.Workspace) {
	if token := ws.Token(); token != "" && ws.Session.State().Status == session.StatusAuthenticated {
		http.SetCookie(w, s.cookie(CookieSession, token, 0))
		return
	}
	http.SetCookie(w, s.cookie(CookieSession, "", -1))
}

func (s *Server) documentViews(ws *workspace.Workspace) []documentView {
	docs := ws.Content.Documents()
	views := make([]documentView, len(docs))
	for i, d := range docs {
		views[i] = documentView{Document: d, CanModify: ws.Session.CanModify(d)}
	}
	return views
}

func (s *Server) serveDocuments(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.Refresh(r.Context())
	respond(w, ws, map[string]any{"documents": s.documentViews(ws)}, err)
}

func (s *Server) serveDelete(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	id := model.DocumentID(r.PathValue("id"))
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	err := ws.Remove(r.Context(), id, confirmed)
	respond(w, ws, map[string]any{
		"deleted":   err == nil && confirmed,
		"documents": s.documentViews(ws),
	}, err)
}

func (s *Server) editorView(ws *workspace.Workspace) editorView {
	return editorView{Target: ws.Content.Target(), Busy: ws.Content.Busy()}
}

func (s *Server) serveEditor(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	writeJSON(w, ws, http.StatusOK, s.editorView(ws))
}

func (s *Server) serveBeginCreate(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.BeginCreate()
	respond(w, ws, s.editorView(ws), err)
}

func (s *Server) serveBeginEdit(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	err := ws.BeginEdit(model.DocumentID(r.PathValue("id")))
	respond(w, ws, s.editorView(ws), err)
}

func (s *Server) serveCancel(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)
	ws.Cancel()
	writeJSON(w, ws, http.StatusOK, s.editorView(ws))
}

func (s *Server) serveSave(w http.ResponseWriter, r *http.Request) {
	ws := mustWorkspace(r)

	asset, err := s.readAsset(w, r)
	if err != nil {
		writeError(w, ws, err)
		return
	}

	err = ws.Save(r.Context(), r.FormValue("title"), r.FormValue("body"), asset)
	respond(w, ws, map[string]any{
		"editor":    s.editorView(ws),
		"documents": s.documentViews(ws),
	}, err)
}

// readAsset parses a multipart request and returns the optional "image"
// file part.
func (s *Server) readAsset(w http.ResponseWriter, r *http.Request) (*model.Asset, error) {
	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindValidation, "save", err)
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "save", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "save", err)
	}

	return &model.Asset{
		Name:     header.Filename,
		MIMEType: header.Header.Get(config.HCType),
		Data:     data,
	}, nil
}
