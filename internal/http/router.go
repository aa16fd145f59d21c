package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"wheel/internal/analysis"
	"wheel/internal/auth"
	"wheel/internal/config"
	"wheel/internal/http/handler"
	mw "wheel/internal/http/middleware"
	"wheel/internal/patterns"
	"wheel/internal/profile"
	"wheel/internal/review"
)

// Services are the long-lived components the router exposes.
type Services struct {
	Scheduler handler.BatchRunner
	Extractor *patterns.Extractor
}

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, svc Services, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	profiles := &profile.Store{DB: db}
	patternStore := &patterns.GormStore{DB: db}
	analysisStore := &analysis.GormStore{DB: db, Profiles: profiles}

	ah := &handler.AuthHandler{Users: &auth.Store{DB: db}, JWT: jwtSvc, Log: log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{Profiles: profiles}
	r.Route("/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))
		r.Get("/", me.Me)
		r.Patch("/profile", me.UpdateProfile)
	})

	an := &handler.AnalysisHandler{Scheduler: svc.Scheduler, Log: log}
	r.With(auth.RequireCronOrSession(jwtSvc, cfg.CronSecret)).Post("/cron/analysis", an.Run)

	ph := &handler.PatternsHandler{Queue: svc.Extractor, Drain: svc.Extractor, Patterns: patternStore, Log: log}
	r.Route("/patterns", func(r chi.Router) {
		r.With(auth.RequireCronOrAdmin(jwtSvc, cfg.CronSecret)).Post("/process", ph.Process)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(jwtSvc))
			r.Get("/", ph.List)
			r.Post("/queue", ph.Enqueue)
		})
	})

	ih := &handler.InsightsHandler{Insights: analysisStore}
	r.With(auth.RequireAuth(jwtSvc)).Get("/insights", ih.List)

	rh := &handler.ReviewsHandler{Svc: &review.Service{DB: db}, Profiles: profiles, Log: log}
	r.Route("/reviews", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))
		r.Post("/", rh.Create)
		r.Get("/", rh.List)
	})

	return r
}
