package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/knowledge"
	"github.com/talgya/red-eyes/internal/persistence"
	"github.com/talgya/red-eyes/internal/proof"
	"github.com/talgya/red-eyes/internal/reasoning"
)

// statusFor maps engine and configuration errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrAlreadyAnnounced), errors.Is(err, engine.ErrAlreadyFinished):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNoActiveSimulation), errors.Is(err, persistence.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, agents.ErrInvalidConfiguration), errors.Is(err, reasoning.ErrUnknownVillagerType):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSimulationDidNotConverge):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeState(w http.ResponseWriter, snap engine.Snapshot, err error) {
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("request failed", "error", err)
		}
		body := map[string]any{"ok": false, "error": err.Error()}
		if snap.Active {
			body["state"] = snap
		}
		writeStatus(w, status, body)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "state": snap})
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.Sim.State()
	writeJSON(w, map[string]any{
		"ok":       true,
		"active":   err == nil,
		"finished": s.Sim.Finished(),
		"autoplay": s.Clock != nil && s.Clock.Running(),
		"llm":      s.LLMEnabled,
		"archive":  s.DB != nil,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sim.State()
	writeState(w, snap, err)
}

// handleProof returns the induction proof for ?numRed=&announced=, or for the
// active village when numRed is absent.
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var numRed int
	var announced bool

	if v := q.Get("numRed"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "numRed must be a non-negative integer")
			return
		}
		numRed = n
		announced = true
		if a := q.Get("announced"); a != "" {
			b, err := strconv.ParseBool(a)
			if err != nil {
				writeError(w, http.StatusBadRequest, "announced must be a boolean")
				return
			}
			announced = b
		}
	} else {
		snap, err := s.Sim.State()
		if err != nil {
			writeState(w, snap, err)
			return
		}
		numRed, announced = snap.NumRed, snap.AnnouncementMade
	}

	writeJSON(w, map[string]any{
		"ok":        true,
		"proof":     proof.Derive(numRed, announced),
		"knowledge": knowledge.Narrative(numRed),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	runs, err := s.DB.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, map[string]any{"ok": true, "runs": runs})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "run archive not enabled")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	run, err := s.DB.GetRun(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "run": run})
}

type initRequest struct {
	NumRed         *int                  `json:"numRed"`
	NumBlue        *int                  `json:"numBlue"`
	VillagerType   agents.VillagerType   `json:"villagerType"`
	AssignmentMode string                `json:"assignmentMode"`
	Types          []agents.VillagerType `json:"types"`
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.NumRed == nil || req.NumBlue == nil {
		writeError(w, http.StatusBadRequest, "numRed and numBlue are required")
		return
	}

	typ := req.VillagerType
	if typ == "" {
		typ = s.Simulation.DefaultType
	}
	var assign agents.Assignment
	if req.Types != nil {
		assign = agents.Assignment{Default: typ, Types: req.Types}
	} else {
		mode := req.AssignmentMode
		if mode == "" {
			mode = s.Simulation.AssignmentMode
		}
		a, err := agents.AssignmentForMode(mode, *req.NumRed+*req.NumBlue, typ)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		assign = a
	}

	snap, err := s.Sim.Initialize(*req.NumRed, *req.NumBlue, assign)
	writeState(w, snap, err)
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sim.Announce()
	writeState(w, snap, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sim.AdvanceDay(r.Context())
	writeState(w, snap, err)
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxDays int `json:"maxDays"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	snap, err := s.Sim.RunToCompletion(r.Context(), req.MaxDays)
	writeState(w, snap, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Reset()
	writeJSON(w, map[string]any{"ok": true, "state": snap})
}
