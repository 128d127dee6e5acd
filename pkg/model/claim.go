package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = goerr.New("invalid claim submission")

	ErrClaimNotFound = goerr.New("claim not found")
)

// MinDescriptionLength is the shortest damage description accepted at submission.
const MinDescriptionLength = 10

type ClaimID string

// NewClaimID generates a new unique ClaimID
func NewClaimID() ClaimID {
	return ClaimID(uuid.New().String())
}

// ClaimReferenceID is the opaque public identifier handed back to the submitter.
type ClaimReferenceID string

// NewClaimReferenceID generates an identifier of the form CLM-xxxxxxxx
func NewClaimReferenceID() ClaimReferenceID {
	return ClaimReferenceID("CLM-" + uuid.New().String()[:8])
}

type IncidentType string

const (
	IncidentTypeMotorDamage    IncidentType = "motor_damage"
	IncidentTypeCollision      IncidentType = "collision"
	IncidentTypeTheft          IncidentType = "theft"
	IncidentTypePropertyDamage IncidentType = "property_damage"
	IncidentTypeFire           IncidentType = "fire"
	IncidentTypeWaterDamage    IncidentType = "water_damage"
	IncidentTypeOther          IncidentType = "other"
)

// IncidentTypes lists every accepted incident type in display order
var IncidentTypes = []IncidentType{
	IncidentTypeMotorDamage,
	IncidentTypeCollision,
	IncidentTypeTheft,
	IncidentTypePropertyDamage,
	IncidentTypeFire,
	IncidentTypeWaterDamage,
	IncidentTypeOther,
}

// Validate checks if the incident type is known
func (t IncidentType) Validate() error {
	for _, v := range IncidentTypes {
		if t == v {
			return nil
		}
	}
	return &FieldError{
		Field:   "incident_type",
		Message: "must be one of: " + joinValues(IncidentTypes),
	}
}

// LocationZone is a generalized, anonymized area. Precise addresses never enter the system.
type LocationZone string

const (
	LocationZoneA LocationZone = "zone_a"
	LocationZoneB LocationZone = "zone_b"
	LocationZoneC LocationZone = "zone_c"
	LocationZoneD LocationZone = "zone_d"
	LocationZoneE LocationZone = "zone_e"
)

var LocationZones = []LocationZone{
	LocationZoneA,
	LocationZoneB,
	LocationZoneC,
	LocationZoneD,
	LocationZoneE,
}

// Validate checks if the zone is one of the anonymized zones
func (z LocationZone) Validate() error {
	for _, v := range LocationZones {
		if z == v {
			return nil
		}
	}
	return &FieldError{
		Field:   "location_zone",
		Message: "must be one of: " + joinValues(LocationZones),
	}
}

// FieldError describes one rejected input field. It matches ErrValidation with errors.Is.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Submitter is the party that filed a claim. Identity is resolved outside of this system.
type Submitter struct {
	ID           string `json:"id" firestore:"id"`
	Username     string `json:"username" firestore:"username"`
	Organization string `json:"organization" firestore:"organization"`
}

// OrganizationName returns the organization or "Unknown" when it was never recorded
func (s Submitter) OrganizationName() string {
	if strings.TrimSpace(s.Organization) == "" {
		return UnknownOrganization
	}
	return s.Organization
}

const UnknownOrganization = "Unknown"

type TimeWindow struct {
	Start time.Time `json:"start" firestore:"start"`
	End   time.Time `json:"end" firestore:"end"`
}

// ClaimInput holds the declared attributes of a claim as submitted
type ClaimInput struct {
	IncidentType      IncidentType `json:"incident_type"`
	DamageDescription string       `json:"damage_description"`
	LocationZone      LocationZone `json:"location_zone"`
	IncidentDate      time.Time    `json:"incident_date_approx"`
	TimeWindow        TimeWindow   `json:"time_window"`
}

// Validate checks every declared attribute and returns the first field error
func (in *ClaimInput) Validate() error {
	if err := in.IncidentType.Validate(); err != nil {
		return err
	}
	if err := in.LocationZone.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.DamageDescription)) < MinDescriptionLength {
		return &FieldError{
			Field:   "damage_description",
			Message: "must be at least 10 characters",
		}
	}
	if in.IncidentDate.IsZero() {
		return &FieldError{Field: "incident_date_approx", Message: "is required"}
	}
	if in.TimeWindow.Start.IsZero() {
		return &FieldError{Field: "incident_time_window_start", Message: "is required"}
	}
	if !in.TimeWindow.End.After(in.TimeWindow.Start) {
		return &FieldError{
			Field:   "incident_time_window_end",
			Message: "must be after incident_time_window_start",
		}
	}
	return nil
}

type Claim struct {
	ID                ClaimID          `json:"id" firestore:"id"`
	ReferenceID       ClaimReferenceID `json:"reference_id" firestore:"reference_id"`
	Submitter         Submitter        `json:"submitter" firestore:"submitter"`
	IncidentType      IncidentType     `json:"incident_type" firestore:"incident_type"`
	LocationZone      LocationZone     `json:"location_zone" firestore:"location_zone"`
	DamageDescription string           `json:"damage_description" firestore:"damage_description"`
	IncidentDate      time.Time        `json:"incident_date_approx" firestore:"incident_date"`
	TimeWindow        TimeWindow       `json:"time_window" firestore:"time_window"`
	ImageCount        int              `json:"image_count" firestore:"image_count"`

	Processed       bool       `json:"processed" firestore:"processed"`
	ProcessingError string     `json:"processing_error,omitempty" firestore:"processing_error"`
	SubmittedAt     time.Time  `json:"submitted_at" firestore:"submitted_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty" firestore:"processed_at"`
}

// NewClaim builds an unprocessed claim from a validated input
func NewClaim(in ClaimInput, submitter Submitter, imageCount int, now time.Time) *Claim {
	return &Claim{
		ID:                NewClaimID(),
		ReferenceID:       NewClaimReferenceID(),
		Submitter:         submitter,
		IncidentType:      in.IncidentType,
		LocationZone:      in.LocationZone,
		DamageDescription: in.DamageDescription,
		IncidentDate:      in.IncidentDate,
		TimeWindow:        in.TimeWindow,
		ImageCount:        imageCount,
		SubmittedAt:       now,
	}
}

func joinValues[T ~string](values []T) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
