// Package handler exposes the generation pipeline over HTTP and websocket.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"appforge/internal/cache/memory"
	"appforge/internal/orchestrator"
	"appforge/internal/progress"
)

// GenerateHandler runs ApplyCodeStream and buffers progress per run so
// websocket subscribers can attach before, during, or after a run.
// Finished run buffers age out of the LRU after an hour.
type GenerateHandler struct {
	orch *orchestrator.Orchestrator

	mu   sync.Mutex
	runs *memory.LRUTTL[string, *progress.Buffer]
	seq  int
}

func NewGenerateHandler(orch *orchestrator.Orchestrator) *GenerateHandler {
	return &GenerateHandler{
		orch: orch,
		runs: memory.NewLRUTTL[string, *progress.Buffer](1024, 0, time.Hour),
	}
}

type generateRequest struct {
	orchestrator.Input
	RunID string `json:"runId,omitempty"`
}

type generateResponse struct {
	RunID  string              `json:"runId"`
	Result orchestrator.Result `json:"result"`
}

// HandleGenerate serves POST /api/generate.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	runID, buf := h.newRun(req.RunID)
	result, err := h.orch.ApplyCodeStream(r.Context(), req.Input, buf.Emit)
	if err != nil && !result.Success {
		// The result still carries the failure detail; report it as JSON
		// rather than a bare 500 so callers get the typed shape.
		w.WriteHeader(http.StatusBadGateway)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(generateResponse{RunID: runID, Result: result})
}

// HandleRunEvents serves GET /api/generate/events?run_id=... with the
// buffered progress of one run.
func (h *GenerateHandler) HandleRunEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID := r.URL.Query().Get("run_id")
	buf, ok := h.run(runID)
	if !ok {
		http.Error(w, "unknown run_id", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"run_id": runID,
		"events": buf.Events(),
	})
}

func (h *GenerateHandler) newRun(id string) (string, *progress.Buffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id == "" {
		h.seq++
		id = fmt.Sprintf("run-%d-%d", time.Now().UnixMilli(), h.seq)
	}
	buf := progress.NewBuffer()
	h.runs.Set(id, buf, 0)
	return id, buf
}

func (h *GenerateHandler) run(id string) (*progress.Buffer, bool) {
	return h.runs.Get(id)
}

// HandleHealthz serves GET /healthz.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
