package http

import (
	"net/http"
)

func (s *Server) handleAddRefueling(w http.ResponseWriter, r *http.Request) {
	var req refuelingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.records.AddRefueling(r.Context(), rec)
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

func (s *Server) handleAddOtherCost(w http.ResponseWriter, r *http.Request) {
	var req otherCostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rec, err := req.toRecord()
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := s.records.AddOtherCost(r.Context(), rec)
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

// handleImport stores a batch of refuelings and other costs atomically.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	batch, err := req.toBatch()
	if err != nil {
		fail(w, r, err)
		return
	}
	if batch.Len() == 0 {
		fail(w, r, &badRequest{msg: "empty import"})
		return
	}
	n, err := s.records.Import(r.Context(), batch)
	if err != nil {
		fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(importResponse{Imported: n}).Write(w)
}
