package api

import (
	"time"

	"github.com/google/uuid"
)

type RequestAppointmentRequest struct {
	PatientID     string  `json:"patient_id"`
	Reason        string  `json:"reason"`
	PreferredDate *string `json:"preferred_date,omitempty"` // YYYY-MM-DD
}

type AssignAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	StartAt  string `json:"start_at"` // RFC 3339
}

type RescheduleAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	StartAt  string `json:"start_at"` // RFC 3339
}

type CompleteAppointmentRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID `json:"doctor_id,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PreferredDate *string    `json:"preferred_date,omitempty"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason"`
	Notes         *string    `json:"notes,omitempty"`
	RoomID        *uuid.UUID `json:"room_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName string        `json:"patient_name,omitempty"`
	DoctorName  string        `json:"doctor_name,omitempty"`
	Specialty   string        `json:"specialty,omitempty"`
	Room        *RoomResponse `json:"room,omitempty"`
}

type OpenSlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"` // HH:MM, ascending
}

type AvailabilityRequest struct {
	Weekday  int    `json:"weekday"` // 0 = Sunday
	Start    string `json:"start"`   // HH:MM
	End      string `json:"end"`     // HH:MM
	IsActive bool   `json:"is_active"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Weekday  int       `json:"weekday"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	IsActive bool      `json:"is_active"`
}

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Specialty  string    `json:"specialty"`
	Department string    `json:"department"`
}

type CreateRoomRequest struct {
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type"`
	Floor      int    `json:"floor"`
	Capacity   int    `json:"capacity"`
}

type RoomResponse struct {
	ID          uuid.UUID `json:"id"`
	RoomNumber  string    `json:"room_number"`
	RoomType    string    `json:"room_type"`
	Floor       int       `json:"floor"`
	Capacity    int       `json:"capacity"`
	IsAvailable bool      `json:"is_available"`
}

type SuggestionResponse struct {
	Doctor      DoctorResponse `json:"doctor"`
	MatchReason string         `json:"match_reason"`
	Relevance   string         `json:"relevance"`
}

type SuggestionsResponse struct {
	Summary     string               `json:"summary"`
	Suggestions []SuggestionResponse `json:"suggestions"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationsResponse struct {
	Unread        int                    `json:"unread"`
	Notifications []NotificationResponse `json:"notifications"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
