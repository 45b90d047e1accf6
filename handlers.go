package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stemstr/quotation/internal/auth"
	"github.com/stemstr/quotation/internal/quotestore"
)

type handlers struct {
	store quoteStore
	auth  tokenValidator
}

type quoteStore interface {
	Ping(ctx context.Context) error

	ListQuotes(ctx context.Context) ([]quotestore.Quote, error)
	GetQuote(ctx context.Context, id int64) (*quotestore.Quote, error)
	CreateQuote(ctx context.Context, req quotestore.CreateQuoteRequest) (*quotestore.Quote, error)
	UpdateQuote(ctx context.Context, id int64, req quotestore.UpdateQuoteRequest) (*quotestore.Quote, error)
	DeleteQuote(ctx context.Context, id int64) error

	ListPersons(ctx context.Context) ([]quotestore.Person, error)
	GetPerson(ctx context.Context, id int64) (*quotestore.Person, error)
	CreatePerson(ctx context.Context, req quotestore.CreatePersonRequest) (*quotestore.Person, error)
	UpdatePerson(ctx context.Context, id int64, req quotestore.UpdatePersonRequest) (*quotestore.Person, error)
	DeletePerson(ctx context.Context, id int64) error
}

type tokenValidator interface {
	Validate(ctx context.Context, header string) (*auth.Claims, error)
}

const (
	msgNotFound         = "resource not found"
	msgUnprocessable    = "Unprocessable"
	msgMethodNotAllowed = "method not allowed"
	msgUnavailable      = "database unavailable"
)

const readyTimeout = 2 * time.Second

var errInvalidBody = errors.New("invalid request body")

// handleIndex reports that the service is up.
func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"description": "Quotation system is running.",
	})
}

// handleReady reports whether the database is reachable.
func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		log.Printf("err: store ping: %v", err)
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleListQuotes returns every quote. An empty table is reported as 404.
func (h *handlers) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.store.ListQuotes(r.Context())
	if err != nil {
		h.storeError(w, "list quotes", err)
		return
	}
	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"quotes":       quotes,
		"total_quotes": len(quotes),
	})
}

// handleListPersons returns every person. An empty table is reported as 404.
func (h *handlers) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.store.ListPersons(r.Context())
	if err != nil {
		h.storeError(w, "list persons", err)
		return
	}
	if len(persons) == 0 {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"persons":       persons,
		"total_persons": len(persons),
	})
}

type createQuoteBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PersonID    *int64  `json:"person_id"`
}

// handleCreateQuote inserts a quote and responds with the refreshed listing.
func (h *handlers) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createQuoteBody
	if err := decodeBody(r, &body); err != nil {
		log.Printf("err: create quote: %v", err)
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}
	if body.Title == nil || body.Description == nil || body.PersonID == nil {
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}

	quote, err := h.store.CreateQuote(ctx, quotestore.CreateQuoteRequest{
		Title:       *body.Title,
		Description: *body.Description,
		PersonID:    *body.PersonID,
	})
	if err != nil {
		h.mutationError(w, "create quote", err)
		return
	}
	quotesCreatedCounter.Inc()
	log.Printf("quote %d created by %s", quote.ID, subject(r))

	quotes, err := h.store.ListQuotes(ctx)
	if err != nil {
		h.mutationError(w, "list quotes", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"created":      quote.ID,
		"quotes":       quotes,
		"total_quotes": len(quotes),
	})
}

type createPersonBody struct {
	Name *string `json:"name"`
}

// handleCreatePerson inserts a person and responds with the refreshed listing.
func (h *handlers) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createPersonBody
	if err := decodeBody(r, &body); err != nil {
		log.Printf("err: create person: %v", err)
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}
	if body.Name == nil {
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}

	person, err := h.store.CreatePerson(ctx, quotestore.CreatePersonRequest{Name: *body.Name})
	if err != nil {
		h.mutationError(w, "create person", err)
		return
	}
	personsCreatedCounter.Inc()
	log.Printf("person %d created by %s", person.ID, subject(r))

	persons, err := h.store.ListPersons(ctx)
	if err != nil {
		h.mutationError(w, "list persons", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"created":       person.ID,
		"persons":       persons,
		"total_persons": len(persons),
	})
}

// handleUpdateQuote changes the supplied fields of a quote. Null, empty and
// zero values are treated as not supplied.
func (h *handlers) handleUpdateQuote(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = idParam(r)
	)

	if _, err := h.store.GetQuote(ctx, id); err != nil {
		h.storeError(w, "get quote", err)
		return
	}

	var body createQuoteBody
	if err := decodeBody(r, &body); err != nil {
		log.Printf("err: update quote %d: %v", id, err)
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}

	var req quotestore.UpdateQuoteRequest
	if body.Title != nil && *body.Title != "" {
		req.Title = body.Title
	}
	if body.Description != nil && *body.Description != "" {
		req.Description = body.Description
	}
	if body.PersonID != nil && *body.PersonID != 0 {
		req.PersonID = body.PersonID
	}

	quote, err := h.store.UpdateQuote(ctx, id, req)
	if err != nil {
		h.mutationError(w, "update quote", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"quote_id": quote.ID,
	})
}

// handleUpdatePerson changes the person's name when a non-empty one is given.
func (h *handlers) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = idParam(r)
	)

	if _, err := h.store.GetPerson(ctx, id); err != nil {
		h.storeError(w, "get person", err)
		return
	}

	var body createPersonBody
	if err := decodeBody(r, &body); err != nil {
		log.Printf("err: update person %d: %v", id, err)
		writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
		return
	}

	var req quotestore.UpdatePersonRequest
	if body.Name != nil && *body.Name != "" {
		req.Name = body.Name
	}

	person, err := h.store.UpdatePerson(ctx, id, req)
	if err != nil {
		h.mutationError(w, "update person", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"person_id": person.ID,
	})
}

func (h *handlers) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = idParam(r)
	)

	if _, err := h.store.GetQuote(ctx, id); err != nil {
		h.storeError(w, "get quote", err)
		return
	}

	if err := h.store.DeleteQuote(ctx, id); err != nil {
		h.mutationError(w, "delete quote", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
	})
}

// handleDeletePerson removes a person. Whether their quotes block the delete
// or go with them depends on person_delete_policy.
func (h *handlers) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = idParam(r)
	)

	if _, err := h.store.GetPerson(ctx, id); err != nil {
		h.storeError(w, "get person", err)
		return
	}

	if err := h.store.DeletePerson(ctx, id); err != nil {
		h.mutationError(w, "delete person", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      id,
	})
}

func (h *handlers) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func (h *handlers) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

// storeError maps a failed lookup: a missing row is a 404, anything else is
// collapsed to a generic 422.
func (h *handlers) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, quotestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	h.mutationError(w, op, err)
}

// mutationError logs the store failure with its class and responds with the
// generic 422. Driver detail never reaches the client.
func (h *handlers) mutationError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, quotestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	class := "unhandled"
	if errors.Is(err, quotestore.ErrConstraintViolation) {
		class = "constraint"
	}
	storeErrors.WithLabelValues(op, class).Inc()
	log.Printf("err: store %s (%s): %v", op, class, err)

	writeError(w, http.StatusUnprocessableEntity, msgUnprocessable)
}

// authError rejects the request. Every auth failure is a 401, with the
// failure's description as the message.
func (h *handlers) authError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		authErr = &auth.AuthError{Kind: auth.KindInvalidHeader, Err: err}
	}

	authFailures.WithLabelValues(authErr.Kind.Code()).Inc()
	log.Printf("auth: %s %s rejected: %v", r.Method, r.URL.Path, authErr)

	writeError(w, http.StatusUnauthorized, authErr.Description())
}

func subject(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

// idParam returns the {id} route parameter. The route pattern only matches
// digits, so the only failure is overflow, which can't name a row.
func idParam(r *http.Request) int64 {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal resp: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   status,
		"message": message,
	})
}
