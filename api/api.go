package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kjk/diary/diary"
	"github.com/kjk/diary/log"
)

// Store is what the http api needs from *diary.Store
type Store interface {
	ListAll() diary.Collection
	GetOne(date string) *diary.Entry
	Upsert(e *diary.Entry) diary.Result
	Backups() ([]diary.Backup, error)
}

// EntryBody is the body of PUT /api/entries/{date}
type EntryBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	OK      bool `json:"ok"`
	Entries int  `json:"entries"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	d, err := json.Marshal(v)
	if err != nil {
		log.Errorf("api: json.Marshal() failed with '%s'\n", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(d)
}

// logRequests logs every request with status, size and duration
func logRequests(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(start)
		log.Logf("%s %s %d %d bytes in %s\n", r.Method, r.URL.Path, status, ww.BytesWritten(), dur)
	}
	return http.HandlerFunc(fn)
}

// NewRouter returns http handler for the diary api
func NewRouter(store Store) http.Handler {
	r := chi.NewRouter()
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			handleHealth(w, r, store)
		})
		r.Get("/entries", func(w http.ResponseWriter, r *http.Request) {
			handleListEntries(w, r, store)
		})
		r.Get("/entries/{date}", func(w http.ResponseWriter, r *http.Request) {
			handleGetEntry(w, r, store)
		})
		r.Put("/entries/{date}", func(w http.ResponseWriter, r *http.Request) {
			handlePutEntry(w, r, store)
		})
		r.Get("/backups", func(w http.ResponseWriter, r *http.Request) {
			handleBackups(w, r, store)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request, store Store) {
	v := healthBody{
		OK:      true,
		Entries: len(store.ListAll()),
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/entries
// returns entries sorted by date
func handleListEntries(w http.ResponseWriter, r *http.Request, store Store) {
	entries := store.ListAll().Sorted()
	if entries == nil {
		entries = []*diary.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/entries/{date}
func handleGetEntry(w http.ResponseWriter, r *http.Request, store Store) {
	date := chi.URLParam(r, "date")
	e := store.GetOne(date)
	if e == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// PUT /api/entries/{date}
// body: {"title": "...", "content": "..."}
// returns diary.Result, 400 if the entry is invalid, 500 if saving failed
func handlePutEntry(w http.ResponseWriter, r *http.Request, store Store) {
	date := chi.URLParam(r, "date")
	var body EntryBody
	// max content is 20000 characters, 1 MB is plenty even when escaped
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		res := diary.Result{Error: fmt.Sprintf("invalid request body: %s", err)}
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	e := &diary.Entry{
		Date:    date,
		Title:   body.Title,
		Content: body.Content,
	}
	res := store.Upsert(e)
	code := http.StatusOK
	if !res.Success {
		code = http.StatusInternalServerError
		if diary.IsValidationError(res.Err) {
			code = http.StatusBadRequest
		}
	}
	writeJSON(w, code, res)
}

// GET /api/backups
func handleBackups(w http.ResponseWriter, r *http.Request, store Store) {
	backups, err := store.Backups()
	if err != nil {
		log.Errorf("api: store.Backups() failed with '%s'\n", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, backups)
}
