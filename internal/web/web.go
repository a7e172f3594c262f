// Package web is the HTTP face of shiftcal: spreadsheet uploads, the
// conversion endpoint and the stored-file routes the converter fetches
// from.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shiftcal/internal/blobstore"
	"shiftcal/internal/config"
	"shiftcal/internal/convert"
	"shiftcal/internal/fetch"
	"shiftcal/internal/gcal"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

// PushFunc mirrors converted events into an external calendar. It is a
// field so tests can observe pushes without talking to Google.
type PushFunc func(ctx context.Context, token string, events []model.CalendarEvent) (created, updated int, err error)

func defaultPush(ctx context.Context, token string, events []model.CalendarEvent) (int, int, error) {
	p, err := gcal.NewPusher(ctx, token)
	if err != nil {
		return 0, 0, err
	}
	return p.UpsertShifts(ctx, events)
}

// Server wires the conversion pipeline, the upload store and the fetch
// client into HTTP handlers.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	store   *blobstore.Store
	fetcher *fetch.Client
	push    PushFunc
	mux     *http.ServeMux
}

// NewServer constructs a Server around its collaborators.
func NewServer(cfg *config.Config, store *blobstore.Store, fetcher *fetch.Client) *Server {
	s := &Server{
		cfg:     cfg,
		loc:     cfg.Location(),
		store:   store,
		fetcher: fetcher,
		push:    defaultPush,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/process", s.handleProcess)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/files/", s.handleFiles)
}

// Handler returns the server's handler chain: CORS outermost, then
// basic auth when configured, then the routes.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return s.corsMiddleware(h)
}

// baseURL is the externally visible prefix for /files/ links.
func (s *Server) baseURL() string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}
	return "http://" + s.cfg.Listen
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware guards the conversion and upload endpoints.
// Health stays open for probes and /files/ stays open because the fetch
// client reads uploads back without credentials.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/process" && r.URL.Path != "/api/upload" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// corsMiddleware answers preflights and marks allowed origins from
// config; "*" allows any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, convert.KindBadRequest, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// processRequest is the conversion request body. fileUrl usually points
// back at this server's /files/ routes but any fetchable URL works.
type processRequest struct {
	FileURL     string `json:"fileUrl"`
	Name        string `json:"name_to_search"`
	Timezone    string `json:"timezone,omitempty"`
	GoogleToken string `json:"google_token,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, convert.KindBadRequest, "method not allowed")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, convert.KindBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.FileURL == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, convert.KindBadRequest, "fileUrl and name_to_search are required")
		return
	}

	loc := s.loc
	if req.Timezone != "" {
		override, err := time.LoadLocation(req.Timezone)
		if err != nil {
			writeError(w, http.StatusBadRequest, convert.KindBadRequest, fmt.Sprintf("unknown timezone %q", req.Timezone))
			return
		}
		loc = override
	}

	data, err := s.fetcher.Fetch(r.Context(), req.FileURL)
	if err != nil {
		appLog.Error("source fetch failed", err)
		writeError(w, http.StatusBadRequest, convert.KindFetch, "could not retrieve the source file")
		return
	}

	res, err := convert.Convert(data, req.Name, convert.Options{
		Now:      time.Now(),
		Location: loc,
	})
	if err != nil {
		kind := convert.Classify(err)
		status := http.StatusInternalServerError
		switch kind {
		case convert.KindBadRequest:
			status = http.StatusBadRequest
		case convert.KindFormat, convert.KindParse:
			status = http.StatusUnprocessableEntity
		}
		appLog.Error("conversion failed", err, "kind", kind.String(), "name", req.Name)
		writeError(w, status, kind, err.Error())
		return
	}

	appLog.Info("conversion done",
		"name", req.Name,
		"events", len(res.Events),
		"skipped", len(res.Skipped),
	)
	if len(res.Events) == 0 {
		appLog.Info("no shifts found for name", "name", req.Name)
	}

	if req.GoogleToken != "" && s.push != nil {
		created, updated, err := s.push(r.Context(), req.GoogleToken, res.Events)
		if err != nil {
			appLog.Error("google calendar push failed", err, "name", req.Name)
		} else {
			appLog.Info("google calendar push done", "created", created, "updated", updated)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shifts.ics"`)
	w.Header().Set("X-Shiftcal-Events", strconv.Itoa(len(res.Events)))
	w.Header().Set("X-Shiftcal-Skipped", strconv.Itoa(len(res.Skipped)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.ICS); err != nil {
		appLog.Error("failed to write calendar response", err)
	}

	// The source served its purpose; remove it so uploads do not pile
	// up. A failed delete is logged and never affects the response the
	// client already has.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.fetcher.Delete(cleanupCtx, req.FileURL); err != nil {
		appLog.Error("source cleanup failed", err)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, convert.KindBadRequest, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, convert.KindBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	up, err := s.store.Put(hdr.Filename, file, s.cfg.MaxUploadBytes)
	if err != nil {
		appLog.Error("upload store failed", err, "name", hdr.Filename)
		writeError(w, http.StatusInternalServerError, convert.KindUnknown, "could not store the upload")
		return
	}

	appLog.Info("file uploaded", "id", up.ID, "name", up.Name, "bytes", up.Size)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      up.ID,
		"name":    up.Name,
		"size":    up.Size,
		"fileUrl": s.baseURL() + "/files/" + up.ID,
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/files/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rc, up, err := s.store.Open(id)
		if errors.Is(err, blobstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			appLog.Error("file open failed", err, "id", id)
			writeError(w, http.StatusInternalServerError, convert.KindUnknown, "could not read the file")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", up.Name))
		w.Header().Set("Content-Length", strconv.FormatInt(up.Size, 10))
		if _, err := io.Copy(w, rc); err != nil {
			appLog.Error("file send failed", err, "id", id)
		}

	case http.MethodDelete:
		err := s.store.Delete(id)
		if errors.Is(err, blobstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			appLog.Error("file delete failed", err, "id", id)
			writeError(w, http.StatusInternalServerError, convert.KindUnknown, "could not delete the file")
			return
		}
		appLog.Info("file deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, convert.KindBadRequest, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

// writeError emits the error payload clients rely on: a message plus
// the error kind the transport derived from the failure.
func writeError(w http.ResponseWriter, status int, kind convert.Kind, msg string) {
	type errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	writeJSON(w, status, errResp{Error: msg, Kind: kind.String()})
}
