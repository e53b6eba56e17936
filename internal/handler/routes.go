package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/msomdec/calendar-api/internal/service"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Auth        *service.AuthService
	Events      *service.EventService
	Calendar    *service.CalendarService
	OAuth       *service.OAuthService
	Limiter     *service.RateLimiter
	DB          Pinger
	Tracer      trace.Tracer
	FrontendURL string
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter builds the HTTP handler with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.Limiter)
	eventHandler := NewEventHandler(d.Events, d.Calendar)
	oauthHandler := NewOAuthHandler(d.OAuth, d.FrontendURL)
	requireAuth := RequireAuth(d.Auth)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(SecurityHeaders)
	if d.Tracer != nil {
		r.Use(Tracing(d.Tracer))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", HandleHome)
	r.Get("/healthz", HandleHealthz(d.DB))

	r.Post("/register", authHandler.HandleRegister)
	r.Post("/token", authHandler.HandleToken)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", authHandler.HandleListUsers)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
		r.With(requireAuth).Get("/me/", authHandler.HandleMe)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/{id}", eventHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", eventHandler.HandleCreate)
			r.Get("/", eventHandler.HandleList)
			r.Get("/calendar.ics", eventHandler.HandleCalendar)
			r.Put("/{id}", eventHandler.HandleUpdate)
			r.Delete("/{id}", eventHandler.HandleDelete)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login/{provider}", oauthHandler.HandleLogin)
		r.Get("/{provider}/callback", oauthHandler.HandleCallback)
	})

	return r
}
