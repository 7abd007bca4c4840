package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docqa/internal/handlers"
	"docqa/internal/service"
	"docqa/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService         service.ChatService
	ConversationService service.ConversationService
	Indexer             handlers.Indexer
	VectorStore         vectorstore.VectorStore
	DB                  handlers.Pinger // optional
	CollectionName      string
	Metrics             HTTPRecorder // optional
	CORSOrigins         []string
	AuthJWTSecret       string // empty disables the conversation routes
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(Tracing(deps.Metrics))
	r.Use(CORS(deps.CORSOrigins))

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.CollectionName)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/search", chatHandler.Search)
			r.Post("/ask", chatHandler.Ask)
			r.Post("/ask/video", chatHandler.AskVideo)
			r.Post("/recommendations", chatHandler.Recommend)

			if deps.AuthJWTSecret != "" && deps.ConversationService != nil {
				sessionHandler := handlers.NewSessionHandler(deps.ConversationService)
				r.Group(func(r chi.Router) {
					r.Use(Authenticator([]byte(deps.AuthJWTSecret)))
					r.Get("/sessions", sessionHandler.List)
					r.Post("/sessions", sessionHandler.Create)
					r.Get("/sessions/{id}", sessionHandler.Get)
					r.Patch("/sessions/{id}", sessionHandler.Rename)
					r.Post("/message", sessionHandler.SendMessage)
					r.Post("/feedback", sessionHandler.Feedback)
				})
			}
		})

		if deps.Indexer != nil {
			r.Method(http.MethodPost, "/ingest/chunks", handlers.NewIngestHandler(deps.Indexer))
		}
	})

	return r
}
