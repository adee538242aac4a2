package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jghoshh/momentum/models"
)

// recoveryMiddleware converts handler panics into 500 responses so one bad
// request cannot take the stub server down.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// NewRouter builds the API router over the given store. Split from Start so
// tests can mount the router on an httptest server.
func NewRouter(store *Store) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/time", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"date": store.Today()})
	}).Methods("GET")

	r.HandleFunc("/api/habits", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, store.Habits())
	}).Methods("GET")

	r.HandleFunc("/api/habits", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		habit, err := store.CreateHabit(body.Name)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, habit)
	}).Methods("POST")

	r.HandleFunc("/api/habits/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		id, _ := strconv.Atoi(mux.Vars(req)["id"])
		var body struct {
			Name       *string `json:"name"`
			IsFavorite *bool   `json:"is_favorite"`
			IsActive   *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		habit, err := store.UpdateHabit(id, body.Name, body.IsFavorite, body.IsActive)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, habit)
	}).Methods("PATCH")

	r.HandleFunc("/api/habits/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		id, _ := strconv.Atoi(mux.Vars(req)["id"])
		if err := store.DeleteHabit(id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	}).Methods("DELETE")

	r.HandleFunc("/api/dashboard", func(w http.ResponseWriter, req *http.Request) {
		records, err := store.DashboardMonth(req.URL.Query().Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}).Methods("GET")

	r.HandleFunc("/api/completions", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			HabitID   int    `json:"habit_id"`
			Date      string `json:"date"`
			Completed bool   `json:"completed"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := store.WriteCompletion(body.HabitID, body.Date, body.Completed); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}).Methods("PUT")

	r.HandleFunc("/api/mood", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Date      string `json:"date"`
			Happiness int    `json:"happiness"`
			Focus     int    `json:"focus"`
			Stress    int    `json:"stress"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ratings := models.MoodRatings{Happiness: body.Happiness, Focus: body.Focus, Stress: body.Stress}
		if err := store.WriteMood(body.Date, ratings); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}).Methods("PUT")

	r.HandleFunc("/api/gratitudes", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Date string `json:"date"`
			Text string `json:"text"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		entry, err := store.AddGratitude(body.Date, body.Text)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}).Methods("POST")

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return handlers.LoggingHandler(os.Stdout, corsHandler(recoveryMiddleware(r)))
}

// Start runs the stub tracker API on the given address. It blocks, so
// callers typically run it in a goroutine.
func Start(addr string, store *Store) {
	log.Printf("Stub tracker API listening on %s", addr)
	if err := http.ListenAndServe(addr, NewRouter(store)); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
