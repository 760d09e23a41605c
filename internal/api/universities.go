package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"campusnet/internal/db"
	"campusnet/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type UniversityHandler struct {
	universities *db.UniversityRepository
}

func NewUniversityHandler(universities *db.UniversityRepository) *UniversityHandler {
	return &UniversityHandler{universities: universities}
}

type PaginationMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
	ItemCount    int `json:"itemCount"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
}

type UniversityListResponse struct {
	Universities []*models.University `json:"universities"`
	Meta         PaginationMeta       `json:"meta"`
}

// GET /api/v1/universities?page=1&limit=10
func (h *UniversityHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	universities, total, err := h.universities.List(r.Context(), page, limit)
	if err != nil {
		slog.Error("error listing universities", "error", err)
		internalError(w)
		return
	}

	totalPages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, UniversityListResponse{
		Universities: universities,
		Meta: PaginationMeta{
			TotalItems:   total,
			ItemsPerPage: limit,
			ItemCount:    len(universities),
			CurrentPage:  page,
			TotalPages:   totalPages,
		},
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
