package model

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// RecurrenceType tells how often a schedule fires.
type RecurrenceType string

const (
	RecurrenceNone RecurrenceType = "NONE"
	RecurrenceCron RecurrenceType = "CRON"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Recurrence describes a one-shot or cron based schedule.
type Recurrence struct {
	Type       RecurrenceType `json:"type"`
	Expression string         `json:"expression,omitempty"`
}

// Next returns the first execution time after from. A one-shot schedule fires after delay.
func (r Recurrence) Next(from time.Time, delay time.Duration) (time.Time, error) {
	switch r.Type {
	case "", RecurrenceNone:
		return from.Add(delay), nil
	case RecurrenceCron:
		sched, err := cronParser.Parse(r.Expression)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", r.Expression, err)
		}
		return sched.Next(from.Add(delay)), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence type %q", r.Type)
	}
}

// ScheduleStatus is the state of a schedule record.
type ScheduleStatus string

const (
	ScheduleActive  ScheduleStatus = "ACTIVE"
	ScheduleExpired ScheduleStatus = "EXPIRED"
	ScheduleDeleted ScheduleStatus = "DELETED"
)

// Schedule is a deferred or recurring execution known to the external scheduler.
type Schedule struct {
	ScheduleID      string
	VehicleID       string
	RequestID       string
	Recurrence      Recurrence
	NextExecutionTs time.Time
	Status          ScheduleStatus
	CreatedOn       time.Time
	UpdatedOn       time.Time
}
