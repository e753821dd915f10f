package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ImportRunStatus string

const (
	ImportRunStatusRunning   ImportRunStatus = "running"
	ImportRunStatusCompleted ImportRunStatus = "completed"
	ImportRunStatusFailed    ImportRunStatus = "failed"
)

// ImportRun is the audit record of one document import.
type ImportRun struct {
	BaseUUIDModel
	Source          string            `gorm:"type:text;not null"                        json:"source"`
	Status          ImportRunStatus   `gorm:"type:varchar(20);not null;index;default:'running'" json:"status"`
	RideID          *int64            `gorm:"index"                                     json:"rideId,omitempty"`
	LogCount        int64             `gorm:"default:-1"                                json:"logCount"`
	LogsImported    int64             `gorm:"default:0"                                 json:"logsImported"`
	Version         string            `gorm:"type:varchar(20)"                          json:"version"`
	VersionMismatch bool              `gorm:"default:false"                             json:"versionMismatch"`
	ErrorMessage    *string           `gorm:"type:text"                                 json:"errorMessage,omitempty"`
	StartedAt       time.Time         `gorm:"not null"                                  json:"startedAt"`
	FinishedAt      *time.Time        `                                                 json:"finishedAt,omitempty"`
	RideFields      datatypes.JSONMap `                                                 json:"rideFields,omitempty"`
}

func (ir *ImportRun) BeforeCreate(tx *gorm.DB) (err error) {
	if ir.Source == "" {
		return gorm.ErrInvalidValue
	}
	if ir.Status == "" {
		ir.Status = ImportRunStatusRunning
	}
	if ir.StartedAt.IsZero() {
		ir.StartedAt = time.Now().UTC()
	}
	return ir.BaseUUIDModel.BeforeCreate(tx)
}

func (ir *ImportRun) MarkAsCompleted(rideID, logCount, logsImported int64) {
	now := time.Now().UTC()
	ir.Status = ImportRunStatusCompleted
	ir.RideID = &rideID
	ir.LogCount = logCount
	ir.LogsImported = logsImported
	ir.FinishedAt = &now
}

// MarkAsFailed records the error. A ride id of 0 means no ride row was
// created before the failure.
func (ir *ImportRun) MarkAsFailed(rideID, logsImported int64, errorMessage string) {
	now := time.Now().UTC()
	ir.Status = ImportRunStatusFailed
	if rideID > 0 {
		ir.RideID = &rideID
	}
	ir.LogsImported = logsImported
	ir.ErrorMessage = &errorMessage
	ir.FinishedAt = &now
}

func (ir *ImportRun) IsFinished() bool {
	return ir.Status == ImportRunStatusCompleted || ir.Status == ImportRunStatusFailed
}

func (ir *ImportRun) Duration() time.Duration {
	if ir.FinishedAt == nil {
		return 0
	}
	return ir.FinishedAt.Sub(ir.StartedAt)
}
