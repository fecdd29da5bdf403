package rest

import (
	"net/http"
	"skillgate/internal/transport/rest/handler"
	"skillgate/internal/transport/rest/middleware"
	"skillgate/internal/transport/ws"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Container holds all dependencies for the router
type Container struct {
	QuizService    handler.QuizService
	VerifyService  handler.VerifyService
	Teams          middleware.TeamAuthenticator
	WSHub          *ws.Hub
	AllowedOrigins []string
	// TrustProxyHeaders applies X-Forwarded-For / X-Real-IP to the remote address
	TrustProxyHeaders bool
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	quizHandler := handler.NewQuizHandler(c.QuizService)
	verifyHandler := handler.NewVerifyHandler(c.VerifyService)
	wsHandler := ws.NewHandler(c.WSHub, c.Teams)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.Teams)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public quiz routes (attempt routes are authorized by session token)
	v1.HandleFunc("/quiz/status", quizHandler.Status).Methods("GET", "OPTIONS")
	v1.HandleFunc("/quiz/start", quizHandler.Start).Methods("POST", "OPTIONS")
	v1.HandleFunc("/quiz/attempts/{attemptId}/progress", quizHandler.SaveProgress).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/quiz/attempts/{attemptId}/submit", quizHandler.Submit).Methods("POST", "OPTIONS")
	v1.HandleFunc("/quiz/attempts/{attemptId}/abandon", quizHandler.Abandon).Methods("POST", "OPTIONS")

	// WebSocket routes (team key in query param)
	v1.HandleFunc("/ws/teams/{teamId}/feed", wsHandler.TeamFeed).Methods("GET")

	// Team routes (require team API key)
	teamRoutes := v1.NewRoute().Subrouter()
	teamRoutes.Use(authMW.RequireTeam)

	teamRoutes.HandleFunc("/verify", verifyHandler.Verify).Methods("POST", "OPTIONS")

	return wrap(r, c.AllowedOrigins, c.TrustProxyHeaders)
}

// wrap applies access logging, CORS, optional proxy headers and panic recovery (outermost)
func wrap(r http.Handler, allowedOrigins []string, trustProxy bool) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	var h http.Handler = r
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)

	h = handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", handler.SessionTokenHeader}),
	)(h)
	if trustProxy {
		h = handlers.ProxyHeaders(h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
}
