package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/hospital-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func urlUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func requestActor(w http.ResponseWriter, r *http.Request) (scheduling.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_actor", "no authenticated actor on request")
	}
	return actor, ok
}

// handleServiceError maps scheduling errors onto HTTP responses: ownership
// failures to 403, missing records to 404, booking conflicts to 409 and
// rule rejections to 422, everything else to 500.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())

	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, scheduling.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", err.Error())
	case errors.Is(err, scheduling.ErrPatientBusy):
		writeError(w, http.StatusConflict, "patient_busy", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "already_processed", err.Error())
	case errors.Is(err, scheduling.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, scheduling.ErrCancelCompleted):
		writeError(w, http.StatusConflict, "already_completed", err.Error())
	case errors.Is(err, scheduling.ErrNotScheduled):
		writeError(w, http.StatusConflict, "not_scheduled", err.Error())
	case errors.Is(err, scheduling.ErrCancelWindow):
		writeError(w, http.StatusConflict, "cancellation_window", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateRoom):
		writeError(w, http.StatusConflict, "room_exists", err.Error())

	case errors.Is(err, scheduling.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, scheduling.ErrTooFarAhead):
		writeError(w, http.StatusUnprocessableEntity, "too_far_ahead", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotAvailable):
		writeError(w, http.StatusUnprocessableEntity, "doctor_not_available", err.Error())
	case errors.Is(err, scheduling.ErrOutsideWorkingHours):
		writeError(w, http.StatusUnprocessableEntity, "outside_working_hours", err.Error())
	case errors.Is(err, scheduling.ErrReasonRequired):
		writeError(w, http.StatusUnprocessableEntity, "reason_required", err.Error())
	case errors.Is(err, scheduling.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, "invalid_window", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		ScheduledAt: a.ScheduledAt,
		Status:      string(a.Status),
		Reason:      a.Reason,
		Notes:       a.Notes,
		RoomID:      a.RoomID,
		CreatedAt:   a.CreatedAt,
	}
	if a.PreferredDate != nil {
		d := a.PreferredDate.Format("2006-01-02")
		resp.PreferredDate = &d
	}
	return resp
}

func toDetailResponse(det *scheduling.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(&det.Appointment)}
	if det.Patient != nil {
		resp.PatientName = det.Patient.Name
	}
	if det.Doctor != nil {
		resp.DoctorName = det.Doctor.Name
		resp.Specialty = det.Doctor.Specialty
	}
	if det.Room != nil {
		room := toRoomResponse(det.Room)
		resp.Room = &room
	}
	return resp
}

func toRoomResponse(rm *scheduling.Room) RoomResponse {
	return RoomResponse{
		ID:          rm.ID,
		RoomNumber:  rm.RoomNumber,
		RoomType:    string(rm.RoomType),
		Floor:       rm.Floor,
		Capacity:    rm.Capacity,
		IsAvailable: rm.IsAvailable,
	}
}

func requestAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}

		var req RequestAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var preferred *time.Time
		if req.PreferredDate != nil {
			d, err := time.ParseInLocation("2006-01-02", *req.PreferredDate, time.UTC)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_preferred_date", "preferred_date must be YYYY-MM-DD")
				return
			}
			preferred = &d
		}

		appt, err := svc.Request(r.Context(), actor, patientID, req.Reason, preferred)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		det, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(det))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}

		status := scheduling.AppointmentStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = scheduling.StatusPending
		}
		switch status {
		case scheduling.StatusPending, scheduling.StatusScheduled, scheduling.StatusCompleted, scheduling.StatusCancelled:
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be pending, scheduled, completed or cancelled")
			return
		}

		limit, offset := pagination(r)
		appts, err := svc.ListByStatus(r.Context(), actor, status, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, detailList(appts))
	}
}

func assignAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AssignAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be RFC 3339")
			return
		}

		appt, err := svc.Assign(r.Context(), actor, id, doctorID, startAt)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be RFC 3339")
			return
		}

		appt, err := svc.Reschedule(r.Context(), actor, id, doctorID, startAt)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CompleteAppointmentRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.Complete(r.Context(), actor, id, req.Notes)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		patientID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		limit, offset := pagination(r)
		appts, err := svc.ListByPatient(r.Context(), actor, patientID, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, detailList(appts))
	}
}

func listDoctorAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		doctorID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		limit, offset := pagination(r)
		appts, err := svc.ListByDoctor(r.Context(), actor, doctorID, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, detailList(appts))
	}
}

func openSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestActor(w, r); !ok {
			return
		}
		doctorID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.OpenSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]string, 0, len(slots))
		for _, slot := range slots {
			out = append(out, slot.UTC().Format("15:04"))
		}

		writeJSON(w, http.StatusOK, OpenSlotsResponse{
			DoctorID: doctorID,
			Date:     dateStr,
			Slots:    out,
		})
	}
}

func detailList(appts []scheduling.AppointmentDetail) []AppointmentDetailResponse {
	out := make([]AppointmentDetailResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toDetailResponse(&appts[i]))
	}
	return out
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or not a whole number.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func pagination(r *http.Request) (limit, offset int) {
	return queryInt(r, "limit", 20), queryInt(r, "offset", 0)
}
