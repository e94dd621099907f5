package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventLog struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Level     LogLevel  `json:"level" gorm:"not null;index"`
	Source    string    `json:"source"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

type LogLevel string

const (
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

func (e *EventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
