package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"grene-storefront/internal/quotes"
)

const maxQuoteBody = 1 << 20

// decodeSubmission validates a quote body against the submission schema and
// turns it into a Record.
func decodeSubmission(r *http.Request) (quotes.Record, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxQuoteBody))
	if err != nil {
		return quotes.Record{}, &quotes.ValidationError{Problems: []string{err.Error()}}
	}
	if err := quotes.Validate(body); err != nil {
		return quotes.Record{}, err
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return quotes.Record{}, &quotes.ValidationError{Problems: []string{err.Error()}}
	}
	rec, err := quotes.NewRecord(m)
	if err != nil {
		return quotes.Record{}, &quotes.ValidationError{Problems: []string{err.Error()}}
	}
	return rec, nil
}

func writeValidation(w http.ResponseWriter, err error) bool {
	var ve *quotes.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid quote", "problems": ve.Problems})
	return true
}

// handleQuoteSubmit is the public quotation form endpoint.
func (s *server) handleQuoteSubmit(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeSubmission(r)
	if err != nil {
		if !writeValidation(w, err) {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	receipt, err := s.intake.Submit(r.Context(), rec)
	if err != nil {
		s.log.Error("quote submission lost", "email", rec.Email(), "err", err)
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	switch receipt.Sink {
	case quotes.SinkEmail:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "fallback": "email"})
	case quotes.SinkQueued:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": true})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (s *server) handleQuoteList(w http.ResponseWriter, r *http.Request) {
	list, err := s.quotes.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error("list quotes", "err", err)
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "quotes": list})
}

// handleQuoteCreate stores an admin-entered quote directly in the repository.
func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeSubmission(r)
	if err != nil {
		if !writeValidation(w, err) {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	saved, err := s.quotes.Append(r.Context(), rec)
	if err != nil {
		s.log.Error("append quote", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "quote": saved})
}

func quoteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *server) handleQuoteGet(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Missing id"})
		return
	}
	rec, err := s.quotes.Get(r.Context(), id)
	if errors.Is(err, quotes.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "Not found"})
		return
	}
	if err != nil {
		s.log.Error("get quote", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "quote": rec})
}

func (s *server) handleQuoteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Missing id"})
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuoteBody)).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid body"})
		return
	}
	updated, err := s.quotes.Update(r.Context(), id, patch)
	if errors.Is(err, quotes.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "Not found"})
		return
	}
	if err != nil {
		s.log.Error("update quote", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "quote": updated})
}

func (s *server) handleQuoteExport(w http.ResponseWriter, r *http.Request) {
	list, err := s.quotes.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cotizaciones.csv"`)
	if err := quotes.WriteCSV(w, list); err != nil {
		s.log.Error("export csv", "err", err)
	}
}

func (s *server) handleQuotePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := quoteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Missing id"})
		return
	}
	rec, err := s.quotes.Get(r.Context(), id)
	if errors.Is(err, quotes.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "Not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "Internal error"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="cotizacion-`+strconv.FormatInt(id, 10)+`.pdf"`)
	if err := quotes.WritePDF(w, rec); err != nil {
		s.log.Error("export pdf", "id", id, "err", err)
	}
}
