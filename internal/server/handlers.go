package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/a-h/templ"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/publish"
	"github.com/conneroisu/pagesmith/internal/version"
	"github.com/conneroisu/pagesmith/internal/websocket"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type publishRequest struct {
	Pages []string `json:"pages"`
}

type publishResponse struct {
	RunID     string            `json:"run_id"`
	Site      string            `json:"site"`
	Published []string          `json:"published"`
	Failed    map[string]string `json:"failed,omitempty"`
	Assets    int               `json:"assets"`
	Duration  string            `json:"duration"`
}

func newPublishResponse(report *publish.Report) publishResponse {
	resp := publishResponse{
		RunID:     report.RunID,
		Site:      report.Site,
		Published: report.Published,
		Assets:    report.Assets,
		Duration:  report.Duration.String(),
	}
	if resp.Published == nil {
		resp.Published = []string{}
	}
	if len(report.Failed) > 0 {
		resp.Failed = make(map[string]string, len(report.Failed))
		for page, err := range report.Failed {
			resp.Failed[page] = err.Error()
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": version.GetShortVersion(),
		"editors": s.ws.GetConnectedClients(),
	})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.pages.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pages == nil {
		pages = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"pages": pages})
}

func (s *Server) handleReadPage(w http.ResponseWriter, r *http.Request) {
	res, err := s.pages.Read(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSavePage(w http.ResponseWriter, r *http.Request) {
	var req merge.EditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pages.Save(r.Context(), r.PathValue("name"), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Matched && res.Changed {
		s.Broadcast(websocket.UpdateMessage{Type: websocket.MessageReload, Target: res.Page})
		if res.Synced > 0 {
			s.Broadcast(websocket.UpdateMessage{Type: websocket.MessageComponent, Target: res.Page})
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreatePage stores the raw request body as a new page.
func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.NewValidationError(errors.ErrCodeMalformedRequest, "cannot read request body"))
		return
	}

	res, err := s.pages.Create(r.Context(), r.PathValue("name"), string(body))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Broadcast(websocket.UpdateMessage{Type: websocket.MessageReload, Target: res.Page})
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	report, err := s.publisher.Publish(r.Context(), req.Pages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := newPublishResponse(report)
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	s.Broadcast(websocket.UpdateMessage{Type: websocket.MessagePublished, Target: report.Site, Content: report.RunID})
	writeJSON(w, status, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	pages, err := s.pages.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sort.Strings(pages)
	templ.Handler(indexPage(pages, s.publisher.Last())).ServeHTTP(w, r)
}

// statusFor maps an error's type to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsSecurityError(err):
		return http.StatusForbidden
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsMalformed(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "request failed", "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err.Error())
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errors.CodeOf(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError(errors.ErrCodeMalformedRequest, "invalid JSON body: "+err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
