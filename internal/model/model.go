// Package model contains domain models for the parcel delivery dispatch core.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

// UserType distinguishes the three sides of the platform. A single phone
// number may hold one identity per type; see auth.RoleUserID.
type UserType string

const (
	TypeCustomer UserType = "customer"
	TypeDriver   UserType = "driver"
	TypeAdmin    UserType = "admin"
)

// AdminRole gates the admin API surface.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
)

// VerificationStatus is the derived per-driver verification state.
type VerificationStatus string

const (
	VerificationNotUploaded VerificationStatus = "not_uploaded"
	VerificationPending     VerificationStatus = "pending_verification"
	VerificationRejected    VerificationStatus = "rejected"
	VerificationVerified    VerificationStatus = "verified"
	// VerificationApproved is an admin-granted superset of verified.
	// Eligibility treats the two identically.
	VerificationApproved VerificationStatus = "approved"
)

// IsEligible reports whether a driver with this status may receive bookings.
func (s VerificationStatus) IsEligible() bool {
	return s == VerificationVerified || s == VerificationApproved
}

// DocumentStatus is the review state of a single uploaded document.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentVerified DocumentStatus = "verified"
	DocumentRejected DocumentStatus = "rejected"
)

// ─── Location ───────────────────────────────────────────────

// GeoPoint is a WGS-84 geographic point (EPSG:4326). This is the only
// coordinate shape that may appear on the wire; legacy storage shapes are
// converted by NormalizeGeoPoint before emission.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DriverLocation maps to the `driver_locations` table (one row per driver,
// overwritten on each push).
type DriverLocation struct {
	DriverID      string    `json:"driver_id"`
	Point         GeoPoint  `json:"location"`
	AccuracyM     float64   `json:"accuracy_m,omitempty"`
	SpeedKmph     float64   `json:"speed_kmph,omitempty"`
	BearingDeg    float64   `json:"bearing_deg,omitempty"`
	CurrentTripID *string   `json:"current_trip_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ─── Users ──────────────────────────────────────────────────

// User maps to the `users` table. Driver-specific fields are null for
// customers and admins.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email,omitempty"`
	UserType  UserType `json:"user_type"`
	AdminRole *string  `json:"admin_role,omitempty"`
	Active    bool     `json:"active"`

	Driver *DriverProfile `json:"driver,omitempty"`

	// IsVerified mirrors Driver.IsVerified at the top level. Admin dashboard
	// queries read it without unpacking the driver profile; the verification
	// engine keeps both in sync.
	IsVerified bool `json:"is_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DriverProfile carries the driver-side state embedded in a user row.
type DriverProfile struct {
	VehicleType        string             `json:"vehicle_type,omitempty"`
	VehicleNumber      string             `json:"vehicle_number,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	IsVerified         bool               `json:"is_verified"`
	IsOnline           bool               `json:"is_online"`
	IsAvailable        bool               `json:"is_available"`
	CurrentBookingID   *string            `json:"current_booking_id,omitempty"`
	CurrentLocation    *GeoPoint          `json:"current_location,omitempty"`
	Rating             float64            `json:"rating"`
	RatingCount        int                `json:"rating_count"`
	TotalTrips         int                `json:"total_trips"`
	LastSeen           *time.Time         `json:"last_seen,omitempty"`

	// DeviceToken is the push-notification target, never exposed in the
	// denormalized summary customers see.
	DeviceToken string `json:"-"`

	// Documents is the raw document map as stored (JSONB). Keys may be
	// camelCase or snake_case; use DocumentRecordFor to read it.
	Documents map[string]DocumentRecord `json:"documents,omitempty"`
}

// DriverSummary is the denormalized driver block included in booking
// notifications and assignment events.
type DriverSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	VehicleType   string   `json:"vehicle_type,omitempty"`
	VehicleNumber string   `json:"vehicle_number,omitempty"`
	Rating        float64  `json:"rating"`
	TotalTrips    int      `json:"total_trips"`
	Location      *GeoPoint `json:"location,omitempty"`
}

// Summary builds the denormalized driver block from a full user row.
func (u *User) Summary() DriverSummary {
	s := DriverSummary{ID: u.ID, Name: u.Name, Phone: u.Phone}
	if u.Driver != nil {
		s.VehicleType = u.Driver.VehicleType
		s.VehicleNumber = u.Driver.VehicleNumber
		s.Rating = u.Driver.Rating
		s.TotalTrips = u.Driver.TotalTrips
		s.Location = u.Driver.CurrentLocation
	}
	return s
}

// ─── Documents ──────────────────────────────────────────────

// RequiredDocumentKinds are the five kinds a driver must have verified to
// receive bookings. Keys are the canonical snake_case forms; readers also
// accept the camelCase variants still present in older rows.
var RequiredDocumentKinds = []string{
	"driving_license",
	"aadhaar_card",
	"bike_insurance",
	"rc_book",
	"profile_photo",
}

// DocumentRecord is one entry of a driver's document map. The boolean
// Verified/Rejected flags and the two status fields coexist because older
// writers set different subsets; classification folds them together.
type DocumentRecord struct {
	URL                string     `json:"url,omitempty"`
	UploadedAt         *time.Time `json:"uploaded_at,omitempty"`
	Status             string     `json:"status,omitempty"`
	VerificationStatus string     `json:"verification_status,omitempty"`
	Verified           bool       `json:"verified,omitempty"`
	Rejected           bool       `json:"rejected,omitempty"`
	ReviewedBy         string     `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
}

// VerificationRequest maps to the `document_verification_requests` audit
// table. One row is appended per admin review action.
type VerificationRequest struct {
	ID           string    `json:"id"`
	DriverID     string    `json:"driver_id"`
	DocumentKind string    `json:"document_kind"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	ReviewedBy   string    `json:"reviewed_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// ─── Work slots ─────────────────────────────────────────────

// SlotStatus is the lifecycle of a single work slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCompleted SlotStatus = "completed"
)

// SlotStartHours are the fixed local start hours for the eight daily
// 2-hour work slots.
var SlotStartHours = []int{7, 9, 11, 13, 15, 17, 19, 21}

// WorkSlot maps to the `work_slots` table.
// ID format: {driverId}_{YYYY-MM-DD}_{startH}-{endH}.
type WorkSlot struct {
	ID         string     `json:"id"`
	DriverID   string     `json:"driver_id"`
	Date       string     `json:"date"` // YYYY-MM-DD, driver-local
	Label      string     `json:"label"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Status     SlotStatus `json:"status"`
	IsSelected bool       `json:"is_selected"`
	CustomerID *string    `json:"customer_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ─── Rejections ─────────────────────────────────────────────

// RejectionRecord maps to the `booking_rejections` table. Its existence
// excludes the driver from rediscovery of the same booking.
type RejectionRecord struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	DriverID   string    `json:"driver_id"`
	Reason     string    `json:"reason,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

// ─── Chat / emergency ───────────────────────────────────────

// ChatMessage maps to the `chat_messages` table.
type ChatMessage struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// EmergencyAlert maps to the `emergency_alerts` table.
type EmergencyAlert struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Location  *GeoPoint `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
