package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/duplifind/duplifind/internal/groupmgr"
	"github.com/duplifind/duplifind/internal/model"
)

// GroupsHandler handles duplicate-group read endpoints and selection-
// strategy application against the last completed scan's groups.
type GroupsHandler struct {
	State LastResulter
}

type memberItem struct {
	Path     string `json:"path"`
	MTime    string `json:"mtime"`
	Selected bool   `json:"selected"`
	Kept     bool   `json:"kept"`
}

type groupItem struct {
	Index       int          `json:"index"`
	FullHash    string       `json:"full_hash"`
	Size        int64        `json:"size"`
	WastedBytes int64        `json:"wasted_bytes"`
	MemberCount int          `json:"member_count"`
	Members     []memberItem `json:"members"`
}

func toGroupItem(index int, g *model.DuplicateGroup) groupItem {
	item := groupItem{
		Index:       index,
		FullHash:    g.FullHash,
		Size:        g.Size,
		WastedBytes: g.WastedBytes(),
		MemberCount: len(g.Members),
	}
	for _, m := range g.Members {
		item.Members = append(item.Members, memberItem{
			Path:     m.Descriptor.Path,
			MTime:    m.Descriptor.MTime.UTC().Format("2006-01-02T15:04:05Z"),
			Selected: m.Selected,
			Kept:     m.Kept,
		})
	}
	return item
}

func (h *GroupsHandler) groups() []*model.DuplicateGroup {
	r := h.State.LastResult()
	if r == nil || r.Groups == nil {
		return nil
	}
	return r.Groups.Groups()
}

// List handles GET /api/groups — sorted by wasted bytes descending, the
// same order groupmgr.Manager.Groups already produces.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	groups := h.groups()
	limit, offset := parsePagination(r)

	items := make([]groupItem, len(groups))
	for i, g := range groups {
		items[i] = toGroupItem(i, g)
	}
	page, total := paginate(items, limit, offset)

	writeJSON(w, http.StatusOK, ListResponse[groupItem]{
		Items: page, Total: total, Limit: limit, Offset: offset,
	})
}

// Get handles GET /api/groups/{index} — index is the group's position in
// the sorted list returned by List, not a stable ID (none is persisted).
func (h *GroupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	groups := h.groups()
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(groups) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "group not found")
		return
	}
	writeJSON(w, http.StatusOK, toGroupItem(idx, groups[idx]))
}

type applyStrategyRequest struct {
	Strategy string `json:"strategy"`
}

// ApplyStrategy handles POST /api/groups/{index}/strategy.
func (h *GroupsHandler) ApplyStrategy(w http.ResponseWriter, r *http.Request) {
	groups := h.groups()
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(groups) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "group not found")
		return
	}

	var req applyStrategyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := groupmgr.ApplyStrategy(groups[idx], groupmgr.Strategy(req.Strategy)); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_STRATEGY", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toGroupItem(idx, groups[idx]))
}

// Stats handles GET /api/groups/stats.
func (h *GroupsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	r2 := h.State.LastResult()
	if r2 == nil {
		writeJSON(w, http.StatusOK, groupmgr.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, r2.Stats)
}
