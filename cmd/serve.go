package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/enrich"
	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrich(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(env.Store, env.Service),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// dossier is the full company view the dashboard renders.
type dossier struct {
	Company      *model.Company      `json:"company"`
	Facts        []model.Fact        `json:"facts"`
	Persons      []model.Person      `json:"persons"`
	Intelligence *model.Intelligence `json:"intelligence,omitempty"`
}

func buildMux(st store.Store, svc *enrich.Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/v1/companies", func(w http.ResponseWriter, r *http.Request) {
		filter := store.CompanyFilter{
			Status: model.EnrichmentStatus(r.URL.Query().Get("status")),
		}
		if v := r.URL.Query().Get("min_score"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, `{"error":"min_score must be an integer"}`, http.StatusBadRequest)
				return
			}
			filter.MinScore = n
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, `{"error":"limit must be an integer"}`, http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		companies, err := st.ListCompanies(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"companies": companies,
			"count":     len(companies),
		})
	})

	mux.HandleFunc("GET /api/v1/companies/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		company, err := st.GetCompany(r.Context(), slug)
		if eris.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"company not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		d := dossier{Company: company}
		if d.Facts, err = st.ListFacts(r.Context(), company.ID); err != nil {
			writeError(w, err)
			return
		}
		if d.Persons, err = st.ListPersons(r.Context(), company.ID); err != nil {
			writeError(w, err)
			return
		}
		intel, err := st.GetIntelligence(r.Context(), company.ID)
		if err != nil && !eris.Is(err, store.ErrNotFound) {
			writeError(w, err)
			return
		}
		d.Intelligence = intel
		writeJSON(w, http.StatusOK, d)
	})

	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.HandleFunc("POST /api/v1/enrich/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		if _, err := st.GetCompany(r.Context(), slug); eris.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"company not found"}`, http.StatusNotFound)
			return
		} else if err != nil {
			writeError(w, err)
			return
		}

		// Run enrichment asynchronously; the service serializes
		// concurrent requests for the same slug.
		go func() {
			if svc == nil {
				return
			}
			if err := svc.Company(context.Background(), slug); err != nil {
				zap.L().Error("api enrichment failed",
					zap.String("slug", slug),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api enrichment complete", zap.String("slug", slug))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"slug":   slug,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
