package httpapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/stockroom/internal/codec"
	"github.com/mesh-intelligence/stockroom/internal/logger"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

type defineCategoryRequest struct {
	Name     string   `json:"name"`
	DataType string   `json:"data_type"`
	Nullable bool     `json:"nullable"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

type defineGroupRequest struct {
	Name            string   `json:"name"`
	Characteristics []string `json:"characteristics"`
}

type itemRequest struct {
	Group  string            `json:"group,omitempty"`
	Values map[string]string `json:"values"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": s.store.Len()})
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	defs := s.query.ListSchema()
	docs := make([]codec.CharacteristicDoc, len(defs))
	for i, c := range defs {
		docs[i] = codec.EncodeCharacteristic(c)
	}
	writeJSON(w, http.StatusOK, newList(docs))
}

func (s *Server) defineCategory(w http.ResponseWriter, r *http.Request) {
	var req defineCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	dt, err := types.ParseDataType(req.DataType)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	c, err := s.store.Schema().Define(r.Context(), req.Name, dt, req.Nullable,
		types.Constraints{Options: req.Options, Min: req.Min, Max: req.Max})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, codec.EncodeCharacteristic(c))
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Schema().Get(chi.URLParam(r, "name"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeCharacteristic(c))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	changed, err := s.store.DeleteCharacteristic(r.Context(), chi.URLParam(r, "name"), cascade(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed_groups": changed})
}

func (s *Server) listGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.query.ListGroups()
	docs := make([]codec.GroupDoc, len(groups))
	for i, g := range groups {
		docs[i] = codec.EncodeGroup(g)
	}
	writeJSON(w, http.StatusOK, newList(docs))
}

func (s *Server) defineGroup(w http.ResponseWriter, r *http.Request) {
	var req defineGroupRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := s.store.DefineGroup(r.Context(), req.Name, req.Characteristics)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, codec.EncodeGroup(g))
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Group(chi.URLParam(r, "name"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.EncodeGroup(g))
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteGroup(r.Context(), chi.URLParam(r, "name"), cascade(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted_records": n})
}

// listItems filters by ?group= and ?where=; both may be combined.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	where := r.URL.Query().Get("where")

	var (
		items []types.Record
		err   error
	)
	if group != "" {
		items, err = s.query.FilterByGroup(group)
	} else {
		items = slices.Collect(s.store.ListRecords(""))
	}
	if err == nil && where != "" {
		var matched []types.Record
		matched, err = s.query.Where(where)
		items = intersect(items, matched)
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// intersect keeps the records of a that also appear in b, in a's order.
func intersect(a, b []types.Record) []types.Record {
	ids := make(map[string]bool, len(b))
	for _, rec := range b {
		ids[rec.ID] = true
	}
	var out []types.Record
	for _, rec := range a {
		if ids[rec.ID] {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.store.CreateRecord(r.Context(), req.Group, req.Values)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/items/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecord(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.store.UpdateRecord(r.Context(), chi.URLParam(r, "id"), req.Values)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) itemHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newList(s.store.History(chi.URLParam(r, "id"))))
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newList(s.query.Summarize()))
}

// changeLog returns the change log, optionally only entries after ?since=.
func (s *Server) changeLog(w http.ResponseWriter, r *http.Request) {
	changes := s.store.Changes()
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "since must be a sequence number")
			return
		}
		kept := changes[:0]
		for _, c := range changes {
			if c.Seq > since {
				kept = append(kept, c)
			}
		}
		changes = kept
	}
	writeJSON(w, http.StatusOK, newList(changes))
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Undo(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(r.Context()); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": s.store.Len()})
}

func cascade(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))
	return v
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
