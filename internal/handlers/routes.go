package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hotpot-chat/internal/auth"
	"hotpot-chat/pkg/response"
)

type RouterDeps struct {
	Auth           *auth.Service
	AuthHandlers   *AuthHandlers
	ChatHandlers   *ChatHandlers
	WSHandlers     *WebSocketHandlers
	Store          Pinger
	AllowedOrigins []string
}

// NewRouter wires every HTTP and websocket route.
func NewRouter(d RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthCheck)
		r.Get("/ready", ReadyCheck(d.Store))

		r.Post("/auth/register", d.AuthHandlers.Register)
		r.Post("/auth/login", d.AuthHandlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			r.Route("/chat/sessions", func(r chi.Router) {
				r.Post("/", d.ChatHandlers.CreateSession)
				r.Get("/", d.ChatHandlers.ListSessions)
				r.Get("/pending", d.ChatHandlers.ListPending)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", d.ChatHandlers.GetSession)
					r.Post("/join", d.ChatHandlers.JoinSession)
					r.Post("/end", d.ChatHandlers.EndSession)
					r.Get("/messages", d.ChatHandlers.ListMessages)
					r.Post("/messages", d.ChatHandlers.SendSessionMessage)
				})
			})

			r.Route("/chat/messages", func(r chi.Router) {
				r.Post("/", d.ChatHandlers.SendDirectMessage)
				r.Get("/unread", d.ChatHandlers.ListUnread)
				r.Post("/{messageID}/read", d.ChatHandlers.MarkRead)
			})
		})
	})

	r.With(d.Auth.Middleware).Get("/ws", d.WSHandlers.HandleWebSocket)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusNotFound, "endpoint not found", nil)
	})

	return r
}
