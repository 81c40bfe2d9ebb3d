package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/pressbridge/internal/wpcompat"
)

func newRouter(app *App) *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(false)

	r.Use(app.Recover)
	r.Use(SecurityHeaders)
	r.Use(app.Logging)
	r.Use(app.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		wpcompat.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/ready", app.HandleReady).Methods(http.MethodGet)

	api := app.API
	token := app.RateLimit(http.HandlerFunc(api.HandleTokenExchange))
	for _, p := range []string{"/token-exchange", "/wp-json/jwt-auth/v1/token"} {
		r.Handle(p, token).Methods(http.MethodPost, http.MethodOptions)
	}
	for _, p := range []string{"/discovery", "/wp-json", "/wp-json/"} {
		r.HandleFunc(p, api.HandleDiscovery).Methods(http.MethodGet)
	}
	r.HandleFunc("/can-publish", api.HandleCanPublish).Methods(http.MethodGet, http.MethodOptions)

	for _, prefix := range []string{"", "/wp-json/wp/v2"} {
		r.HandleFunc(prefix+"/posts", api.HandleListPosts).Methods(http.MethodGet)
		r.HandleFunc(prefix+"/posts", api.HandleCreatePost).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc(prefix+"/tags", api.HandleCreateTag).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc(prefix+"/categories", api.HandleCreateCategory).Methods(http.MethodPost, http.MethodOptions)
	}
	for _, p := range []string{"/batch", "/wp-json/batch/v1"} {
		r.HandleFunc(p, api.HandleBatch).Methods(http.MethodPost, http.MethodOptions)
	}

	notFound := app.Logging(app.CORS(http.HandlerFunc(wpcompat.HandleNotFound)))
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound
	return r
}

// HandleReady reports whether the store answers.
func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		a.Log.Warn("readiness check failed", zap.Error(err))
		wpcompat.WriteJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	wpcompat.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
