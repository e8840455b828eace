package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinivo/consult-scheduling/internal/slot"
)

// SlotService is the slice of the slot store the HTTP layer uses.
type SlotService interface {
	CreateSlot(ctx context.Context, practitionerID uuid.UUID, date, start, end time.Time) (*slot.TimeSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	ListSlots(ctx context.Context, q slot.ListQuery) ([]slot.TimeSlot, time.Time, error)
}

func createSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		start, err := clockOn(date, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "start must be HH:MM")
			return
		}
		end, err := clockOn(date, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "end must be HH:MM")
			return
		}

		created, err := svc.CreateSlot(r.Context(), practitionerID, date, start, end)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(*created))
	}
}

func deleteSlotHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteSlot(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listSlotsHandler(svc SlotService, defaultPageSize, maxPageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(r.URL.Query().Get("practitioner_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}

		q := slot.ListQuery{
			PractitionerID: practitionerID,
			Limit:          defaultPageSize,
		}

		if raw := r.URL.Query().Get("date"); raw != "" {
			date, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			q.Date = &date
		}

		if raw := r.URL.Query().Get("after"); raw != "" {
			after, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_cursor", "after must be an RFC3339 timestamp")
				return
			}
			q.After = &after
		}

		if raw := r.URL.Query().Get("page_size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be a positive integer")
				return
			}
			if n > maxPageSize {
				n = maxPageSize
			}
			q.Limit = n
		}

		slots, next, err := svc.ListSlots(r.Context(), q)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := SlotListResponse{Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, toSlotResponse(s))
		}
		if !next.IsZero() {
			resp.Next = next.Format(time.RFC3339)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// clockOn combines a calendar day with an HH:MM wall time, in UTC.
func clockOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
