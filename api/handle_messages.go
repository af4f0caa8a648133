package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/frequency-chain/frequency-ops/database/models"
)

const (
	maxPageSize = 1000
	// maxPage keeps the skip offset (page-1)*pageSize well inside int64.
	maxPage = 1_000_000
)

func (s *Server) handleMessagesGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Get query parameters
	page, err := strconv.ParseInt(q.Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		ERROR(w, http.StatusBadRequest, fmt.Errorf("page must be at most %d", maxPage))
		return
	}

	pageSize, err := strconv.ParseInt(q.Get("pageSize"), 10, 64)
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	pageSize = min(pageSize, maxPageSize)

	// Build filter from query parameters
	var filter models.Filter
	if v := q.Get("schemaId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid schemaId %q", v))
			return
		}
		schemaID := uint16(id)
		filter.SchemaID = &schemaID
	}
	if v := q.Get("providerMsaId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid providerMsaId %q", v))
			return
		}
		filter.ProviderMsaID = &id
	}
	if filter.FromBlock, err = blockParam(q.Get("fromBlock")); err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	if filter.ToBlock, err = blockParam(q.Get("toBlock")); err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.db.GetMessages(r.Context(), filter, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func blockParam(v string) (uint32, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", v)
	}
	return uint32(n), nil
}
