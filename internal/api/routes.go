package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	// v1 API routes
	r.Route("/v1", func(r chi.Router) {
		// Strings
		r.Route("/strings", func(r chi.Router) {
			r.Post("/mget", h.MGet)
			r.Post("/mset", h.MSet)
			r.Get("/{key}", h.GetString)
			r.Put("/{key}", h.PutString)
			r.Delete("/{key}", h.DeleteKey)
			r.Post("/{key}/setnx", h.SetNX)
			r.Post("/{key}/expire", h.Expire)
		})

		// Keys of any type
		r.Route("/keys/{key}", func(r chi.Router) {
			r.Get("/", h.KeyExists)
			r.Delete("/", h.DeleteKey)
			r.Get("/ttl", h.TTL)
			r.Post("/expire", h.Expire)
		})

		// Counters
		r.Route("/counters/{key}", func(r chi.Router) {
			r.Post("/incr", h.Incr)
			r.Post("/decr", h.Decr)
		})

		// Lists
		r.Route("/lists/{key}", func(r chi.Router) {
			r.Get("/", h.LRange)
			r.Get("/len", h.LLen)
			r.Post("/push", h.Push)
			r.Post("/pop", h.Pop)
		})

		// Hashes
		r.Route("/hashes/{key}", func(r chi.Router) {
			r.Get("/", h.HGetAll)
			r.Put("/", h.HMSet)
			r.Get("/{field}", h.HGet)
			r.Put("/{field}", h.HSet)
			r.Delete("/{field}", h.HDel)
		})

		// Sets
		r.Route("/sets/{key}", func(r chi.Router) {
			r.Get("/", h.SMembers)
			r.Post("/", h.SAdd)
			r.Post("/remove", h.SRem)
			r.Post("/pop", h.SPop)
			r.Get("/members/{member}", h.SIsMember)
		})

		// Sorted sets
		r.Route("/zsets/{key}", func(r chi.Router) {
			r.Get("/", h.ZRange)
			r.Post("/", h.ZAdd)
			r.Get("/by-score", h.ZRangeByScore)
			r.Get("/count", h.ZCount)
			r.Post("/incr", h.ZIncrBy)
			r.Get("/members/{member}/rank", h.ZRank)
			r.Get("/members/{member}/score", h.ZScore)
			r.Delete("/members/{member}", h.ZRem)
		})

		// Leases
		r.Route("/locks/{key}", func(r chi.Router) {
			r.Post("/", h.AcquireLock)
			r.Post("/release", h.ReleaseLock)
		})
	})

	return r
}
