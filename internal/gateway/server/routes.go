package server

import (
	"net/http"

	"appforge/internal/gateway/handler"
	"appforge/internal/gateway/middleware"
)

func NewMux(generateHandler *handler.GenerateHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", generateHandler.HandleGenerate)
	mux.HandleFunc("/api/generate/events", generateHandler.HandleRunEvents)
	mux.HandleFunc("/api/generate/ws", generateHandler.HandleProgressWS)
	mux.HandleFunc("/healthz", handler.HandleHealthz)

	return middleware.CORS(mux)
}
