package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/email"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/logger"
	"github.com/jwalitptl/careops-api/pkg/messaging"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

const (
	// ChannelPrefix is the redis channel family for in-app delivery
	ChannelPrefix = "notifications"
	// EdgeFunction delivers sms and push notifications
	EdgeFunction = "send-notification"

	defaultMaxAttempts = 3
	defaultRetryDelay  = 5 * time.Second
	retryBatchSize     = 100
	defaultListLimit   = 50
)

// EdgeInvoker is the subset of the edge function client used for sms and push
type EdgeInvoker interface {
	Invoke(ctx context.Context, name string, body interface{}, out interface{}) error
}

type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

type Service struct {
	repo     repository.NotificationRepository
	emailSvc email.Service
	broker   messaging.Publisher
	edge     EdgeInvoker
	config   Config
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	repo repository.NotificationRepository,
	emailSvc email.Service,
	broker messaging.Publisher,
	edge EdgeInvoker,
	config Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		emailSvc: emailSvc,
		broker:   broker,
		edge:     edge,
		config:   config,
		metrics:  m,
		logger:   log.With("notification"),
		now:      time.Now,
	}
}

// Send persists the notification and attempts delivery once.
// A failed delivery is scheduled for retry and is not reported as an error.
func (s *Service) Send(ctx context.Context, tenantID uuid.UUID, req model.SendNotificationRequest) (*model.Notification, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}

	n := &model.Notification{
		UserID:    req.UserID,
		Channel:   req.Channel,
		Priority:  req.Priority,
		Category:  req.Category,
		Subject:   req.Subject,
		Content:   req.Content,
		Recipient: req.Recipient,
		Status:    model.NotificationStatusPending,
	}
	n.TenantID = tenantID

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperrors.Database("create notification", err)
	}

	if err := s.deliver(ctx, n); err != nil {
		return nil, apperrors.Database("update notification", err)
	}
	return n, nil
}

// NotifyRole sends an in-app notification addressed to everyone holding role
func (s *Service) NotifyRole(ctx context.Context, tenantID uuid.UUID, role string, priority model.NotificationPriority, category, subject, content string) error {
	_, err := s.Send(ctx, tenantID, model.SendNotificationRequest{
		Channel:   model.ChannelInApp,
		Priority:  priority,
		Category:  category,
		Subject:   subject,
		Content:   content,
		Recipient: "role:" + role,
	})
	return err
}

// NotifyUser sends an in-app notification to a single user
func (s *Service) NotifyUser(ctx context.Context, tenantID, userID uuid.UUID, priority model.NotificationPriority, category, subject, content string) error {
	_, err := s.Send(ctx, tenantID, model.SendNotificationRequest{
		UserID:    &userID,
		Channel:   model.ChannelInApp,
		Priority:  priority,
		Category:  category,
		Subject:   subject,
		Content:   content,
		Recipient: "user:" + userID.String(),
	})
	return err
}

// RetryDue redelivers notifications whose backoff has elapsed and returns how many were sent
func (s *Service) RetryDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDueRetries(ctx, now, retryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due notifications: %w", err)
	}

	sent := 0
	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		if err := s.deliver(ctx, n); err != nil {
			s.logger.Error(err, "failed to persist retry result", "notification_id", n.ID.String())
			continue
		}
		if n.Status == model.NotificationStatusSent {
			sent++
		}
	}
	return sent, nil
}

func (s *Service) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	out, err := s.repo.ListForUser(ctx, tenantID, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.Database("list notifications", err)
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, tenantID, id, userID uuid.UUID) error {
	err := s.repo.MarkRead(ctx, tenantID, id, userID, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("notification", err)
	}
	if err != nil {
		return apperrors.Database("mark notification read", err)
	}
	return nil
}

// deliver attempts one dispatch and persists the outcome
func (s *Service) deliver(ctx context.Context, n *model.Notification) error {
	err := s.dispatch(ctx, n)
	now := s.now().UTC()

	if err == nil {
		n.Status = model.NotificationStatusSent
		n.SentAt = &now
		n.NextRetryAt = nil
		n.LastError = ""
		s.metrics.NotificationsSent.WithLabelValues(string(n.Channel)).Inc()
		return s.repo.Update(ctx, n)
	}

	s.metrics.NotificationsFailed.WithLabelValues(string(n.Channel)).Inc()
	n.RetryCount++
	n.LastError = err.Error()
	if n.RetryCount >= s.config.MaxAttempts {
		n.Status = model.NotificationStatusFailed
		n.NextRetryAt = nil
	} else {
		next := now.Add(s.config.RetryBackoff * time.Duration(n.RetryCount))
		n.Status = model.NotificationStatusRetrying
		n.NextRetryAt = &next
	}

	s.logger.Warn("notification delivery failed",
		"notification_id", n.ID.String(),
		"channel", string(n.Channel),
		"attempt", n.RetryCount,
		"status", string(n.Status),
		"error", err.Error())
	return s.repo.Update(ctx, n)
}

func (s *Service) dispatch(ctx context.Context, n *model.Notification) error {
	switch n.Channel {
	case model.ChannelEmail:
		if s.emailSvc == nil {
			return errors.New("email channel is not configured")
		}
		return s.emailSvc.Send(ctx, n.Recipient, n.Subject, n.Content)
	case model.ChannelInApp:
		if s.broker == nil {
			return errors.New("in-app channel is not configured")
		}
		return s.broker.Publish(ctx, messaging.TenantChannel(ChannelPrefix, n.TenantID.String()), messaging.Message{
			Type:     "notification",
			TenantID: n.TenantID.String(),
			Payload:  n,
		})
	case model.ChannelSMS, model.ChannelPush:
		if s.edge == nil {
			return fmt.Errorf("%s channel is not configured", n.Channel)
		}
		return s.edge.Invoke(ctx, EdgeFunction, map[string]interface{}{
			"channel":   n.Channel,
			"recipient": n.Recipient,
			"subject":   n.Subject,
			"content":   n.Content,
			"priority":  n.Priority,
			"tenant_id": n.TenantID,
		}, nil)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}
