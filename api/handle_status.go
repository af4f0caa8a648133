package api

import "net/http"

func (s *Server) handleCheckpointsGet(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.db.ListLastIndexedBlocks(r.Context())
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}
	JSON(w, http.StatusOK, blocks)
}

func (s *Server) handleUpgradesGet(w http.ResponseWriter, r *http.Request) {
	batches, err := s.db.GetUpgradeBatches(r.Context(), r.URL.Query().Get("chain"))
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}
	JSON(w, http.StatusOK, batches)
}
