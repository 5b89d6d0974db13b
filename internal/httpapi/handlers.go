package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/internal/board"
	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Operation labels used for the board operation counter.
const (
	opUpsert        = "upsert"
	opMove          = "move"
	opRequestDelete = "request_delete"
	opConfirmDelete = "confirm_delete"
	opCancelDelete  = "cancel_delete"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error  string             `json:"error"`
	Fields []types.FieldError `json:"fields,omitempty"`
}

// mutationResponse reports the outcome of a board mutation.
type mutationResponse struct {
	Revision int64         `json:"revision"`
	Change   *types.Change `json:"change,omitempty"`
	Record   *types.Record `json:"record,omitempty"`
}

// deleteRequest is the body of POST /deletions.
type deleteRequest struct {
	RecordID    string `json:"recordId"`
	BucketID    string `json:"bucketId"`
	DisplayName string `json:"displayName"`
}

// recordResponse is the body of GET /records/{id}.
type recordResponse struct {
	BucketID string       `json:"bucketId"`
	Record   types.Record `json:"record"`
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Buckets())
}

func (s *Server) handleBucket(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tags)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	page, err := board.Query(s.engine.Snapshot(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFindRecord(w http.ResponseWriter, r *http.Request) {
	bucketID, rec, err := s.engine.FindRecord(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{BucketID: bucketID, Record: rec})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var form types.FormData
	if !s.decode(w, r, &form) {
		return
	}
	snap, rec, err := s.engine.Upsert(form)
	s.observe(opUpsert, snap, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	code := http.StatusOK
	if form.ID == "" {
		code = http.StatusCreated
	}
	writeJSON(w, code, mutationResponse{Revision: snap.Revision, Change: snap.Change, Record: &rec})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req types.MoveRequest
	if !s.decode(w, r, &req) {
		return
	}
	snap, err := s.engine.Move(req)
	s.observe(opMove, snap, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Revision: snap.Revision, Change: snap.Change})
}

func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	pd, err := s.engine.RequestDelete(req.RecordID, req.BucketID, req.DisplayName)
	s.metrics.RecordOperation(opRequestDelete, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pd)
}

func (s *Server) handlePendingDelete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	pd, ok := s.engine.Pending(token)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: pending deletion %q", types.ErrNotFound, token))
		return
	}
	writeJSON(w, http.StatusOK, pd)
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.ConfirmDelete(chi.URLParam(r, "token"))
	s.observe(opConfirmDelete, snap, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Revision: snap.Revision, Change: snap.Change})
}

func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	err := s.engine.CancelDelete(chi.URLParam(r, "token"))
	s.metrics.RecordOperation(opCancelDelete, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// observe counts a mutation and updates the revision gauge on success.
func (s *Server) observe(op string, snap types.Snapshot, err error) {
	s.metrics.RecordOperation(op, err)
	if err == nil {
		s.metrics.SetRevision(snap.Revision)
	}
}

// parseQuery reads a RecordQuery from URL parameters. Malformed numbers and
// booleans are reported as validation errors.
func parseQuery(r *http.Request) (types.RecordQuery, error) {
	v := r.URL.Query()
	q := types.RecordQuery{
		BucketID: v.Get("bucket"),
		Priority: types.Priority(v.Get("priority")),
		Tag:      v.Get("tag"),
		Text:     v.Get("q"),
		SortBy:   v.Get("sort"),
	}

	var verr types.ValidationError
	intParam := func(name string, dst *int) {
		if raw := v.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				verr.Add(name, "must be an integer")
				return
			}
			*dst = n
		}
	}
	intParam("page", &q.Page)
	intParam("per_page", &q.PerPage)
	if raw := v.Get("desc"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add("desc", "must be a boolean")
		}
		q.Desc = b
	}
	return q, verr.OrNil()
}

// decode reads a JSON body into dst, replying 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps engine errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrInvalidBucket):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
