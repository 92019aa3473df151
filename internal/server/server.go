// Package server exposes the registry over HTTP for interactive sessions.
// It maps typed core failures onto wire status codes and owns no market
// state of its own.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketdata-go/internal/registry"
	"marketdata-go/internal/report"
)

// QueryTimeLayout is the timestamp format accepted by the data endpoint.
const QueryTimeLayout = "2006-01-02-15:04"

// Server is the HTTP session layer over the registry and report generator.
type Server struct {
	reg        *registry.Registry
	gen        *report.Generator
	reportPath string
	log        zerolog.Logger
}

// New builds the session layer. Reports regenerate the artifact at
// reportPath in full on every request.
func New(reg *registry.Registry, gen *report.Generator, reportPath string, log zerolog.Logger) *Server {
	return &Server{reg: reg, gen: gen, reportPath: reportPath, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /data/{time}", s.handleData)
	mux.HandleFunc("POST /add_ticker/{ticker}", s.handleAdd)
	mux.HandleFunc("DELETE /del_ticker/{ticker}", s.handleDelete)
	mux.HandleFunc("GET /report", s.handleReport)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("session server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Connected to trading server")
}

type tickerData struct {
	Price  *float64 `json:"price"`
	Signal *float64 `json:"signal"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	at, err := time.Parse(QueryTimeLayout, r.PathValue("time"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "query time must use format YYYY-MM-DD-HH:MM")
		return
	}

	result := make(map[string]tickerData)
	for _, ticker := range s.reg.Tickers() {
		quote, err := s.reg.Query(ticker, at)
		if err != nil {
			// Removed between snapshot and query.
			continue
		}
		var td tickerData
		if quote.Price != nil {
			td.Price = &quote.Price.Value
		}
		if quote.Signal != nil {
			td.Signal = &quote.Signal.Value
		}
		result[ticker] = td
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))

	err := s.reg.Add(r.Context(), ticker)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, "Added "+ticker+" to server data")
	case errors.Is(err, registry.ErrAlreadyExists):
		writeJSON(w, http.StatusAlreadyReported, ticker+" already in server data")
	default:
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("add failed")
		writeJSON(w, http.StatusBadRequest, "Error adding "+ticker+" to server data")
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))

	if err := s.reg.Remove(ticker); err != nil {
		writeJSON(w, http.StatusNotFound, ticker+" not in server data")
		return
	}
	writeJSON(w, http.StatusOK, "Deleted "+ticker+" from server data")
}

type reportResponse struct {
	Message string `json:"message"`
	Rows    int    `json:"rows"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rows := s.gen.Generate(time.Now())
	if err := report.WriteCSV(s.reportPath, rows); err != nil {
		s.log.Error().Err(err).Str("path", s.reportPath).Msg("report write failed")
		writeJSON(w, http.StatusInternalServerError, "unable to write report")
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Message: "report updated with latest data",
		Rows:    len(rows),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
