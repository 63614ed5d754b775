package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Powertrain string

const (
	PowertrainPetrol   Powertrain = "petrol"
	PowertrainDiesel   Powertrain = "diesel"
	PowertrainHybrid   Powertrain = "hybrid"
	PowertrainElectric Powertrain = "electric"
)

func (p Powertrain) Valid() bool {
	switch p {
	case PowertrainPetrol, PowertrainDiesel, PowertrainHybrid, PowertrainElectric:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusReviewed   Status = "reviewed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted, StatusReviewed:
		return true
	}
	return false
}

// Answer is the technician's verdict on one checked item.
type Answer string

const (
	AnswerGood     Answer = "good"
	AnswerAdvisory Answer = "advisory"
	AnswerUrgent   Answer = "urgent"
	AnswerNA       Answer = "n/a"
)

type Rating string

const (
	RatingNone  Rating = ""
	RatingGreen Rating = "green"
	RatingAmber Rating = "amber"
	RatingRed   Rating = "red"
)

// Answers is keyed by section, then by item.
type Answers map[string]map[string]Answer

type SectionScore struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Weight   int      `json:"weight"`
	Score    *float64 `json:"score"`
	Answered int      `json:"answered"`
	Advisory int      `json:"advisory"`
	Urgent   int      `json:"urgent"`
}

type Response struct {
	ID         snowflake.ID                       `gorm:"primaryKey" json:"id"`
	GarageID   snowflake.ID                       `gorm:"not null;index" json:"garageId"`
	VehicleID  string                             `gorm:"type:text;not null;index" json:"vehicleId"`
	BookingID  *snowflake.ID                      `gorm:"index" json:"bookingId,omitempty"`
	Powertrain Powertrain                         `gorm:"type:text;not null" json:"powertrain"`
	Status     Status                             `gorm:"type:text;not null;index" json:"status"`
	AssignedTo string                             `gorm:"type:text;index" json:"assignedTo,omitempty"`
	CreatedBy  string                             `gorm:"type:text;not null" json:"createdBy"`
	Notes      string                             `gorm:"type:text" json:"notes,omitempty"`
	Answers    datatypes.JSONType[Answers]        `gorm:"type:jsonb" json:"answers"`
	Sections   datatypes.JSONType[[]SectionScore] `gorm:"type:jsonb" json:"sections"`
	Score      float64                            `gorm:"not null;default:0" json:"score"`
	Rating     Rating                             `gorm:"type:text" json:"rating,omitempty"`
	CreatedAt  time.Time                          `gorm:"not null;index" json:"createdAt"`
	UpdatedAt  time.Time                          `gorm:"not null" json:"updatedAt"`
}

func (Response) TableName() string { return "vhc_responses" }

type ListFilter struct {
	GarageID   snowflake.ID
	Status     Status
	AssignedTo string
	VehicleID  string
	Powertrain Powertrain
	CreatedBy  string
	StartAt    *time.Time
	EndAt      *time.Time
	SortBy     string
	SortOrder  string
}
