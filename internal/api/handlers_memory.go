package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	respond "github.com/atriumhq/atrium/internal/api/respond"
	"github.com/atriumhq/atrium/internal/memory"
	"github.com/atriumhq/atrium/internal/model"
)

type MemoryHandler struct {
	index *memory.Index
}

func NewMemoryHandler(index *memory.Index) *MemoryHandler {
	return &MemoryHandler{index: index}
}

// Search POST /api/v1/memory/search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query       string   `json:"query"`
		OwnerID     *int64   `json:"ownerId,omitempty"`
		EntityTypes []string `json:"entityTypes,omitempty"`
		EntityID    string   `json:"entityId,omitempty"`
		Limit       int      `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	out, err := h.index.Search(r.Context(), memory.SearchRequest{
		Query:       req.Query,
		OwnerID:     req.OwnerID,
		EntityTypes: req.EntityTypes,
		EntityID:    req.EntityID,
		Limit:       req.Limit,
	})
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if out == nil {
		out = []*model.MemoryEntry{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": out, "count": len(out)})
}

// Recent GET /api/v1/memory/recent
func (h *MemoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	var ownerID *int64
	if raw := r.URL.Query().Get("owner"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.WriteBadRequest(w, "owner must be numeric")
			return
		}
		ownerID = &n
	}
	limit := queryInt(r, "limit", 20)

	out, err := h.index.RecentForOwner(r.Context(), ownerID, limit)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	if out == nil {
		out = []*model.MemoryEntry{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": out, "count": len(out)})
}
