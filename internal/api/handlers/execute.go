package handlers

import (
	"net/http"

	"github.com/duplifind/duplifind/internal/action"
)

// ExecuteHandler handles POST /api/execute — runs an action batch over
// the members already selected (through the strategy endpoint) in the
// last completed scan's groups; the request can only narrow the batch to
// some groups via group_indexes.
type ExecuteHandler struct {
	State    LastResulter
	Executor *action.Executor
	Options  action.Options // defaults (trash dir, collision policy); Kind/Permanent come from the request
}

type executeRequest struct {
	Kind      string `json:"kind"`      // "trash", "move", "delete"
	Permanent bool   `json:"permanent"`
	DestDir   string `json:"dest_dir,omitempty"`
	// GroupIndexes restricts the batch to these groups' positions in the
	// last List response; omitted means every group with a selection.
	GroupIndexes []int `json:"group_indexes,omitempty"`
}

type outcomeItem struct {
	Path   string `json:"path"`
	State  string `json:"state"`
	Dest   string `json:"dest,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ServeHTTP runs the requested batch.
func (h *ExecuteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	result := h.State.LastResult()
	if result == nil || result.Groups == nil {
		writeError(w, http.StatusConflict, "NO_SCAN_RESULT", "no completed scan to act on")
		return
	}
	groups := result.Groups.Groups()

	wanted := make(map[int]bool)
	for _, idx := range req.GroupIndexes {
		wanted[idx] = true
	}

	var selections []action.GroupSelection
	for i, g := range groups {
		if len(req.GroupIndexes) > 0 && !wanted[i] {
			continue
		}
		sel := g.SelectedMembers()
		if len(sel) == 0 {
			continue
		}
		selections = append(selections, action.GroupSelection{Group: g, Selected: sel})
	}
	if len(selections) == 0 {
		writeError(w, http.StatusBadRequest, "NOTHING_SELECTED", "no members are selected for action")
		return
	}

	opts := h.Options
	opts.Kind = action.Kind(req.Kind)
	opts.Permanent = req.Permanent
	if req.DestDir != "" {
		opts.DestDir = req.DestDir
	}

	batch, err := h.Executor.Execute(r.Context(), selections, opts)
	if err != nil {
		writeError(w, http.StatusConflict, "ACTION_REJECTED", err.Error())
		return
	}

	items := make([]outcomeItem, len(batch.Outcomes))
	for i, o := range batch.Outcomes {
		items[i] = outcomeItem{Path: o.Path, State: string(o.State), Dest: o.Dest, Reason: o.Reason}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": items})
}
