package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/azure/community-signals-bot/internal/export"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/monitoring"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// analyzer is the part of the monitoring service exposed over HTTP
type analyzer interface {
	RunAnalysis(ctx context.Context) (*models.Report, error)
	GetMetrics() string
	LatestReport() (*models.Report, error)
	ExportTable(table export.Table) ([]byte, error)
	ExportWorkbook() ([]byte, error)
	InvalidateCache()
}

func newRouter(service analyzer, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/status", statusHandler(service)).Methods("GET")
	router.Handle("/metrics", monitoring.Handler(gatherer)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(service)).Methods("POST")
	router.HandleFunc("/report", reportHandler(service)).Methods("GET")
	router.HandleFunc("/export/workbook.xlsx", workbookHandler(service)).Methods("GET")
	router.HandleFunc("/export/{table}", exportHandler(service)).Methods("GET")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func statusHandler(service analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(service.GetMetrics()))
	}
}

// triggerHandler starts an analysis in the background. ?fresh=true drops the
// cached batch first.
func triggerHandler(service analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fresh") == "true" {
			service.InvalidateCache()
		}

		go func() {
			if _, err := service.RunAnalysis(context.Background()); err != nil {
				logrus.Errorf("Manual analysis trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Analysis triggered successfully"}`))
	}
}

func reportHandler(service analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := service.LatestReport()
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logrus.Errorf("Failed to encode report: %v", err)
		}
	}
}

func exportHandler(service analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := export.ParseTable(mux.Vars(r)["table"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		data, err := service.ExportTable(table)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(table, time.Now().UTC(), "csv")))
		w.Write(data)
	}
}

func workbookHandler(service analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := service.ExportWorkbook()
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="insights.xlsx"`)
		w.Write(data)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, monitoring.ErrNoReport) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
