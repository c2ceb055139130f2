package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const maxNotifyBody = 1 << 20

// NewHandler builds the HTTP surface of the relay: an SSE stream per
// conversation, a notify endpoint that publishes into it, and a health
// check.
func NewHandler(reg *Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", handleHealth)
	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/events", handleEvents(reg))
		r.Post("/notify", handleNotify(reg))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents holds the connection open and streams published payloads as
// SSE message events. The subscription lives exactly as long as the
// request: a replaced or closed subscription ends the stream.
func handleEvents(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversation := chi.URLParam(r, "id")
		user := r.URL.Query().Get("user")
		if user == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
			return
		}

		sub := reg.Subscribe(conversation, user)
		defer reg.Unsubscribe(sub)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprintf(w, ": connected %s\n\n", sub.ID)
		flusher.Flush()

		zap.L().Info("subscriber connected",
			zap.String("conversation", conversation),
			zap.String("user", user))

		for {
			select {
			case <-r.Context().Done():
				return
			case payload, open := <-sub.C:
				if !open {
					return
				}
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

func handleNotify(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversation := chi.URLParam(r, "id")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}
		if !json.Valid(body) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be valid JSON"})
			return
		}

		delivered := reg.Publish(conversation, body)
		writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
