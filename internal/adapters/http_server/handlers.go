package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rental_portal/internal/app"
	"rental_portal/internal/domain"
)

const maxBody = 1 << 20

type Handlers struct {
	Props *app.PropertyService
	Slots *app.SlotService
	Apps  *app.ApplicationService
	Fees  *app.FeeService
}

type problem struct {
	Type             string        `json:"type"`
	Title            string        `json:"title"`
	Status           int           `json:"status"`
	Detail           string        `json:"detail,omitempty"`
	ConflictingSlots []domain.Slot `json:"conflictingSlots,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Put("/v1/admin/properties/{propertyID}", h.registerProperty)
	s.mux.Get("/v1/properties/{propertyID}", h.getProperty)
	s.mux.Route("/v1/properties/{propertyID}/slots", func(r chi.Router) {
		r.Post("/", h.createSlots)
		r.Get("/", h.listAllSlots)
		r.Get("/available", h.listAvailableSlots)
	})
	s.mux.Post("/v1/slots/{slotID}/book", h.bookSlot)
	s.mux.Delete("/v1/slots/{slotID}", h.deleteSlot)

	s.mux.Post("/v1/applications", h.createApplication)
	s.mux.Route("/v1/applications/{id}", func(r chi.Router) {
		r.Get("/", h.getApplication)
		r.Patch("/", h.updateApplicant)
		r.Delete("/", h.deleteApplication)
		r.Put("/documents", h.uploadDocument)
		r.Delete("/documents/{documentID}", h.deleteDocument)
		r.Patch("/status", h.patchStatus)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Post("/viewing", h.requestViewing)
		r.Patch("/viewing", h.updateViewing)
		r.Get("/fee", h.fee)
		r.Post("/payment", h.confirmPayment)
	})
	s.mux.Get("/v1/admin/properties/{propertyID}/households", h.households)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &ce):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Conflict", Status: http.StatusConflict, Detail: ce.Msg, ConflictingSlots: ce.Slots})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeTagged answers list reads with a weak ETag and honours If-None-Match.
func writeTagged(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write list body")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be valid JSON")
		return false
	}
	return true
}

// ---- properties ----

type propertyRequest struct {
	Address string `json:"address"`
}

func (h *Handlers) registerProperty(w http.ResponseWriter, r *http.Request) {
	var in propertyRequest
	if !decode(w, r, &in) {
		return
	}
	p, err := h.Props.Register(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "propertyID"), in.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Props.Get(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---- slots ----

type slotRangeRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (h *Handlers) createSlots(w http.ResponseWriter, r *http.Request) {
	var in slotRangeRequest
	if !decode(w, r, &in) {
		return
	}
	out, err := h.Slots.CreateSlots(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "propertyID"), in.Date, in.StartTime, in.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listAllSlots(w http.ResponseWriter, r *http.Request) {
	out, err := h.Slots.ListAll(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTagged(w, r, out)
}

func (h *Handlers) listAvailableSlots(w http.ResponseWriter, r *http.Request) {
	out, err := h.Slots.ListAvailable(r.Context(), chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTagged(w, r, out)
}

func (h *Handlers) bookSlot(w http.ResponseWriter, r *http.Request) {
	var b domain.Booker
	if !decode(w, r, &b) {
		return
	}
	out, err := h.Slots.BookSlot(r.Context(), chi.URLParam(r, "slotID"), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.Slots.DeleteSlot(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "slotID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- applications ----

type statusRequest struct {
	Status string `json:"status"`
}

type viewingRequest struct {
	Date string `json:"date"`
}

type paymentRequest struct {
	PaymentID string `json:"paymentId"`
}

// respond writes the application (or error) produced by a service call.
func respond(w http.ResponseWriter, r *http.Request, status int, a domain.Application, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, a)
}

func (h *Handlers) createApplication(w http.ResponseWriter, r *http.Request) {
	var in app.NewApplication
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.Create(r.Context(), CallerFrom(r.Context()), in)
	respond(w, r, http.StatusCreated, a, err)
}

func (h *Handlers) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.Apps.Get(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) updateApplicant(w http.ResponseWriter, r *http.Request) {
	var in app.ApplicantUpdate
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.UpdateApplicant(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in)
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.Apps.Delete(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var in app.DocumentUpload
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.UploadDocument(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in)
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	a, err := h.Apps.DeleteDocument(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "documentID"))
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) patchStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.PatchStatus(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in.Status)
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	a, err := h.Apps.Approve(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) reject(w http.ResponseWriter, r *http.Request) {
	a, err := h.Apps.Reject(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) requestViewing(w http.ResponseWriter, r *http.Request) {
	var in viewingRequest
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.RequestViewing(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in.Date)
	respond(w, r, http.StatusOK, a, err)
}

func (h *Handlers) updateViewing(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if !decode(w, r, &in) {
		return
	}
	a, err := h.Apps.UpdateViewingStatus(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in.Status)
	respond(w, r, http.StatusOK, a, err)
}

// ---- fees ----

func (h *Handlers) fee(w http.ResponseWriter, r *http.Request) {
	q, err := h.Fees.Quote(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var in paymentRequest
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Fees.ConfirmPayment(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "id"), in.PaymentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) households(w http.ResponseWriter, r *http.Request) {
	out, err := h.Apps.Households(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTagged(w, r, out)
}
