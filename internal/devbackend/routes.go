package devbackend

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/filters"
)

// RoutesConfig configures the development backend's HTTP surface.
type RoutesConfig struct {
	// AdminToken guards /api/admin. Empty disables the admin routes.
	AdminToken string
	// SessionCookie is the cookie accepted in place of a bearer header.
	SessionCookie string
	// UploadsDir is served at the origin root when set.
	UploadsDir string
}

// RegisterRoutes mounts the backend endpoints on the given router.
func RegisterRoutes(r chi.Router, repo *Repository, cfg RoutesConfig) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", handleCategories(repo))
		r.Get("/manufacturers", handleManufacturers(repo))
		r.Get("/products", handleProducts(repo))
		r.Get("/products/autocomplete", handleAutocomplete(repo))
		r.Get("/jobs", handleJobs(repo))
		r.Post("/contact", handleContact(repo))

		if cfg.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireToken(cfg.AdminToken, cfg.SessionCookie))
				r.Get("/categories", handleCategories(repo))
				r.Post("/categories", handleCreateCategory(repo))
				r.Get("/categories/{id}", handleGetCategory(repo))
				r.Put("/categories/{id}", handleUpdateCategory(repo))
				r.Delete("/categories/{id}", handleDeleteCategory(repo))
				r.Get("/contacts", handleContacts(repo))
				r.Get("/settings", handleSettings(repo))
				r.Put("/settings", handlePutSettings(repo))
			})
		}
	})

	if cfg.UploadsDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.UploadsDir)))
	}
}

// requireToken accepts the token as "Authorization: Bearer" or as the
// session cookie.
func requireToken(token, cookie string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				got = strings.TrimPrefix(h, "Bearer ")
			} else if c, err := r.Cookie(cookie); err == nil {
				got = c.Value
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleCategories(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := repo.Categories(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, cats)
	}
}

func handleManufacturers(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := repo.Manufacturers(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, names)
	}
}

func handleProducts(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := ProductFilter{
			Search:        q.Get("search"),
			CategoryID:    q.Get("category"),
			Components:    splitList(q.Get("components")),
			Manufacturers: splitList(q.Get("products")),
			Parts:         splitList(q.Get("parts")),
		}
		if v := q.Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "page must be a positive integer")
				return
			}
			f.Page = n
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			f.Limit = n
		}
		if f.CategoryID == filters.ShowAll {
			f.CategoryID = ""
		}

		products, pg, err := repo.Products(r.Context(), f)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, backend.Envelope[[]backend.Product]{Success: true, Data: products, Pagination: &pg})
	}
}

func handleAutocomplete(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		names, err := repo.Autocomplete(r.Context(), q, 8)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, names)
	}
}

func handleJobs(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := repo.Jobs(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, jobs)
	}
}

func handleContact(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub backend.ContactSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := repo.CreateContact(r.Context(), sub)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusCreated, saved)
	}
}

func handleContacts(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := repo.Contacts(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, subs)
	}
}

func handleGetCategory(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := repo.Category(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, c)
	}
}

func handleCreateCategory(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CategoryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		c, err := repo.CreateCategory(r.Context(), in)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusCreated, c)
	}
}

func handleUpdateCategory(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CategoryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		c, err := repo.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, c)
	}
}

func handleDeleteCategory(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := repo.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeRepoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, backend.Envelope[any]{Success: true, Message: "category deleted"})
	}
}

func handleSettings(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := repo.Settings(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, s)
	}
}

func handlePutSettings(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var values map[string]string
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := repo.PutSettings(r.Context(), values); err != nil {
			writeRepoError(w, err)
			return
		}
		s, err := repo.Settings(r.Context())
		if err != nil {
			writeRepoError(w, err)
			return
		}
		writeData(w, http.StatusOK, s)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeData[T any](w http.ResponseWriter, status int, data T) {
	writeJSON(w, status, backend.Envelope[T]{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backend.Envelope[any]{Success: false, Error: msg})
}

func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("devbackend: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
