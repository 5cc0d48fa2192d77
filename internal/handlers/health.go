package handlers

import (
	"context"
	"net/http"

	"hotpot-chat/pkg/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, "ok", map[string]string{"status": "ok"})
}

// ReadyCheck reports ready once the store answers a ping.
func ReadyCheck(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, "database not ready", nil)
			return
		}
		response.OK(w, "ready", map[string]string{"status": "ready"})
	}
}
