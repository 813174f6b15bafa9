package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carebridge/hospital-scheduling/internal/notify"
	"github.com/carebridge/hospital-scheduling/internal/scheduling"
	"github.com/carebridge/hospital-scheduling/internal/triage"
)

func listDoctorsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestActor(w, r); !ok {
			return
		}

		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			out = append(out, toDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toDoctorResponse(d scheduling.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:         d.ID,
		Name:       d.Name,
		Specialty:  d.Specialty,
		Department: d.Department,
	}
}

func getAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestActor(w, r); !ok {
			return
		}
		doctorID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		avs, err := svc.ListAvailability(r.Context(), doctorID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]AvailabilityResponse, 0, len(avs))
		for _, av := range avs {
			out = append(out, AvailabilityResponse{
				DoctorID: av.DoctorID,
				Weekday:  int(av.Weekday),
				Start:    formatMinute(av.StartMinute),
				End:      formatMinute(av.EndMinute),
				IsActive: av.IsActive,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func putAvailabilityHandler(svc *scheduling.Service) http.HandlerFunc {
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

		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be 0 (Sunday) through 6 (Saturday)")
			return
		}
		start, err := parseMinute(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := parseMinute(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		av, err := svc.SetAvailability(r.Context(), actor, doctorID, time.Weekday(req.Weekday), start, end, req.IsActive)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID: av.DoctorID,
			Weekday:  int(av.Weekday),
			Start:    formatMinute(av.StartMinute),
			End:      formatMinute(av.EndMinute),
			IsActive: av.IsActive,
		})
	}
}

func createRoomHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}

		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.RoomNumber == "" {
			writeError(w, http.StatusBadRequest, "invalid_room_number", "room_number is required")
			return
		}
		roomType := scheduling.RoomType(req.RoomType)
		switch roomType {
		case scheduling.RoomConsultation, scheduling.RoomOperation, scheduling.RoomEmergency:
		default:
			writeError(w, http.StatusBadRequest, "invalid_room_type", "room_type must be consultation, operation or emergency")
			return
		}

		room, err := svc.AddRoom(r.Context(), actor, scheduling.Room{
			RoomNumber: req.RoomNumber,
			RoomType:   roomType,
			Floor:      req.Floor,
			Capacity:   req.Capacity,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRoomResponse(room))
	}
}

func listRoomsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}

		rooms, err := svc.ListRooms(r.Context(), actor)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]RoomResponse, 0, len(rooms))
		for i := range rooms {
			out = append(out, toRoomResponse(&rooms[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// suggestDoctorsHandler ranks doctors against the appointment's reason for
// visit, for the staff assignment screen.
func suggestDoctorsHandler(svc *scheduling.Service, suggester *triage.Suggester) http.HandlerFunc {
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

		limit := queryInt(r, "limit", 0)

		suggestions, err := suggester.SuggestDoctors(r.Context(), det.Reason, limit)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := SuggestionsResponse{
			Summary:     triage.Summary(det.Reason),
			Suggestions: make([]SuggestionResponse, 0, len(suggestions)),
		}
		for _, s := range suggestions {
			out.Suggestions = append(out.Suggestions, SuggestionResponse{
				Doctor:      toDoctorResponse(s.Doctor),
				MatchReason: s.MatchReason,
				Relevance:   string(s.Relevance),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listNotificationsHandler(notifier *notify.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		userID, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}
		if userID != actor.ID && !actor.IsStaff() {
			writeError(w, http.StatusForbidden, "forbidden", "cannot read another user's notifications")
			return
		}

		limit := queryInt(r, "limit", 0)

		notifications, err := notifier.ListForUser(r.Context(), userID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
			return
		}
		unread, err := notifier.UnreadCount(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
			return
		}

		out := NotificationsResponse{
			Unread:        unread,
			Notifications: make([]NotificationResponse, 0, len(notifications)),
		}
		for _, n := range notifications {
			out.Notifications = append(out.Notifications, NotificationResponse{
				ID:        n.ID,
				Message:   n.Message,
				Kind:      n.Kind,
				IsRead:    n.IsRead,
				CreatedAt: n.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func markNotificationReadHandler(notifier *notify.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requestActor(w, r)
		if !ok {
			return
		}
		id, ok := urlUUID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
			return
		}

		if err := notifier.MarkRead(r.Context(), actor.ID, id); err != nil {
			if errors.Is(err, notify.ErrNotificationNotFound) {
				writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func parseMinute(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return h*60 + m, nil
}

func formatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
