package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending  NotificationStatus = "pending"
	NotificationStatusSent     NotificationStatus = "sent"
	NotificationStatusFailed   NotificationStatus = "failed"
	NotificationStatusRetrying NotificationStatus = "retrying"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
	ChannelInApp NotificationChannel = "in_app"
)

type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityNormal   NotificationPriority = "normal"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

type Notification struct {
	Base
	UserID      *uuid.UUID           `db:"user_id" json:"user_id,omitempty"`
	Channel     NotificationChannel  `db:"channel" json:"channel"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	Category    string               `db:"category" json:"category"`
	Subject     string               `db:"subject" json:"subject"`
	Content     string               `db:"content" json:"content"`
	Recipient   string               `db:"recipient" json:"recipient"`
	Status      NotificationStatus   `db:"status" json:"status"`
	RetryCount  int                  `db:"retry_count" json:"retry_count"`
	LastError   string               `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt *time.Time           `db:"next_retry_at" json:"next_retry_at,omitempty"`
	SentAt      *time.Time           `db:"sent_at" json:"sent_at,omitempty"`
	ReadAt      *time.Time           `db:"read_at" json:"read_at,omitempty"`
}

type SendNotificationRequest struct {
	UserID    *uuid.UUID           `json:"user_id"`
	Channel   NotificationChannel  `json:"channel" validate:"required,oneof=email sms push in_app"`
	Priority  NotificationPriority `json:"priority" validate:"omitempty,oneof=low normal high critical"`
	Category  string               `json:"category" validate:"required,max=100"`
	Subject   string               `json:"subject" validate:"max=300"`
	Content   string               `json:"content" validate:"required,max=10000"`
	Recipient string               `json:"recipient" validate:"required,max=300"`
}
