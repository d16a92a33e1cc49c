package restapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abrandao/iotseries/pkg/timeseries"
)

// NewRouter builds the REST surface of §6 plus the per-series WebSocket
// notification endpoint, over mgr.
func NewRouter(mgr *timeseries.Manager) *mux.Router {
	handler := NewHandler(mgr)
	hub := NewHub(mgr)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/series", handler.ListSeries).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/content", handler.GetContent).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/content", handler.DeleteContent).Methods(http.MethodDelete)
	router.HandleFunc("/series/{name}/content/{ts}", handler.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/content/{ts}", handler.DeleteItem).Methods(http.MethodDelete)
	router.HandleFunc("/series/{name}/content/{ts}", handler.PutAppend).Methods(http.MethodPut)
	router.HandleFunc("/series/{name}", handler.PostAppend).Methods(http.MethodPost)
	router.HandleFunc("/series/{name}/statistics", handler.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/ws", hub.HandleSeriesWS).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/export", handler.GetExport).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/import", handler.PostImport).Methods(http.MethodPost)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
