package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookcal/internal/export"
	"bookcal/internal/models"
	"bookcal/internal/store"

	"github.com/go-chi/chi/v5"
)

const maxCalendarDays = 92

type bookingRequest struct {
	ApartmentID string `json:"apartmentId"`
	GuestName   string `json:"guestName"`
	GuestEmail  string `json:"guestEmail"`
	GuestPhone  string `json:"guestPhone"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

func (br bookingRequest) toForm() (models.BookingForm, error) {
	start, err := parseDate(br.StartDate)
	if err != nil {
		return models.BookingForm{}, err
	}
	end, err := parseDate(br.EndDate)
	if err != nil {
		return models.BookingForm{}, err
	}
	status := br.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	return models.BookingForm{
		ApartmentID: br.ApartmentID,
		GuestName:   br.GuestName,
		GuestEmail:  br.GuestEmail,
		GuestPhone:  br.GuestPhone,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		Notes:       br.Notes,
	}, nil
}

type bookingPatchRequest struct {
	ApartmentID *string `json:"apartmentId"`
	GuestName   *string `json:"guestName"`
	GuestEmail  *string `json:"guestEmail"`
	GuestPhone  *string `json:"guestPhone"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (pr bookingPatchRequest) toPatch() (models.BookingPatch, error) {
	patch := models.BookingPatch{
		ApartmentID: pr.ApartmentID,
		GuestName:   pr.GuestName,
		GuestEmail:  pr.GuestEmail,
		GuestPhone:  pr.GuestPhone,
		Status:      pr.Status,
		Notes:       pr.Notes,
	}
	if pr.StartDate != nil {
		start, err := parseDate(*pr.StartDate)
		if err != nil {
			return models.BookingPatch{}, err
		}
		patch.StartDate = &start
	}
	if pr.EndDate != nil {
		end, err := parseDate(*pr.EndDate)
		if err != nil {
			return models.BookingPatch{}, err
		}
		patch.EndDate = &end
	}
	return patch, nil
}

type bookingResponse struct {
	Booking models.Booking `json:"booking"`
	Warning string         `json:"warning,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD or RFC3339", s)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListApartments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"apartments": s.catalog.List()})
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings := s.store.Bookings()

	q := r.URL.Query()
	apartmentID := q.Get("apartment_id")
	status := q.Get("status")

	var from, to time.Time
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		from = models.Day(t)
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to = models.Day(t)
	}

	filtered := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if apartmentID != "" && b.ApartmentID != apartmentID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		// from/to select bookings whose stay intersects the window.
		if !from.IsZero() && !b.EndDate.After(from) {
			continue
		}
		if !to.IsZero() && !b.StartDate.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		filtered = append(filtered, b)
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": filtered})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := req.toForm()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.store.Add(r.Context(), form)
	if err != nil && !errors.Is(err, store.ErrPersistence) {
		s.writeStoreError(w, err)
		return
	}

	resp := bookingResponse{Booking: booking}
	if err != nil {
		resp.Warning = "booking saved in memory only: " + err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: booking})
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil && !errors.Is(err, store.ErrPersistence) {
		s.writeStoreError(w, err)
		return
	}

	resp := bookingResponse{Booking: booking}
	if err != nil {
		resp.Warning = "booking saved in memory only: " + err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, store.ErrPersistence) {
		s.writeStoreError(w, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"warning": "deletion saved in memory only: " + err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExtendBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndDate string `json:"endDate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.store.Extend(r.Context(), chi.URLParam(r, "id"), end)
	if err != nil && !errors.Is(err, store.ErrPersistence) {
		s.writeStoreError(w, err)
		return
	}

	resp := bookingResponse{Booking: booking}
	if err != nil {
		resp.Warning = "booking saved in memory only: " + err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type calendarDay struct {
	Date    string          `json:"date"`
	Booking *models.Booking `json:"booking,omitempty"`
}

type calendarRow struct {
	Apartment models.Apartment `json:"apartment"`
	Days      []calendarDay    `json:"days"`
}

// handleCalendar projects the collection onto a start+days grid, one
// row per apartment, using the store's own day-occupancy query.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	start := models.Day(time.Now())
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = models.Day(t)
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxCalendarDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", maxCalendarDays))
			return
		}
		days = n
	}

	rows := make([]calendarRow, 0, s.catalog.Len())
	for _, apt := range s.catalog.List() {
		row := calendarRow{Apartment: apt, Days: make([]calendarDay, 0, days)}
		for i := 0; i < days; i++ {
			day := start.AddDate(0, 0, i)
			cell := calendarDay{Date: day.Format("2006-01-02")}
			if b, ok := s.store.FindActiveBooking(day, apt.ID); ok {
				cell.Booking = &b
			}
			row.Days = append(row.Days, cell)
		}
		rows = append(rows, row)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start":      start.Format("2006-01-02"),
		"days":       days,
		"apartments": rows,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := export.WriteBookings(w, s.store.Bookings()); err != nil {
		s.logger.Error().Err(err).Msg("Bookings export failed")
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Unexpected store error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
