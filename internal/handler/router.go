package handler

import (
	"net/http"

	"github.com/Dan9191/winprob-gateway/internal/config"
	"github.com/Dan9191/winprob-gateway/internal/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires routes and middleware
func NewRouter(h *Handler, tokens middleware.TokenParser, cfg *config.Config, log *logrus.Logger) http.Handler {
	r := mux.NewRouter()
	requireAuth := middleware.AuthMiddleware(tokens)

	var signup, login, predict http.Handler = http.HandlerFunc(h.Signup), http.HandlerFunc(h.Login), http.HandlerFunc(h.Predict)
	if cfg.AuthRateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
		signup = rl.Middleware(signup)
		login = rl.Middleware(login)
	}
	if cfg.PredictRequireAuth {
		predict = requireAuth(predict)
	}

	// Public routes
	r.Handle("/signup", signup).Methods(http.MethodPost)
	r.Handle("/login", login).Methods(http.MethodPost)
	r.Handle("/predict", predict).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	// Protected routes
	r.Handle("/me", requireAuth(http.HandlerFunc(h.Me))).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet, http.MethodHead)
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})

	return middleware.RequestLogger(log)(corsHandler(r))
}
