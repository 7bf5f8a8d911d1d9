package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/angelmondragon/helpdesk-billing/pkg/db/models"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/helpdesk-billing/pkg/errors"
	"github.com/angelmondragon/helpdesk-billing/pkg/pagination"
)

// Service is the tenant-facing inbox of quota alerts and billing updates.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ListParams filters one page of a tenant's inbox, newest first.
type ListParams struct {
	TenantID   uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
	Severity   enums.AlertSeverity
	MetricKey  string
}

// ListResult is one page plus the tenant's total unread count.
type ListResult struct {
	Items  []View `json:"items"`
	Cursor string `json:"cursor"`
	Unread int64  `json:"unread"`
}

// View is the API shape of a stored notification. Usage carries the alert
// snapshot for quota alerts.
type View struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Severity  enums.AlertSeverity    `json:"severity"`
	MetricKey string                 `json:"metricKey,omitempty"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Usage     *Event                 `json:"usage,omitempty"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if params.Severity != "" && !params.Severity.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown severity %q", params.Severity)
	}

	filter := listNotificationsParams{
		TenantID:   params.TenantID,
		Limit:      pagination.NormalizeLimit(params.Limit),
		UnreadOnly: params.UnreadOnly,
		Severity:   params.Severity,
		MetricKey:  params.MetricKey,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	result := &ListResult{
		Items:  lo.Map(rows, func(n models.Notification, _ int) View { return toView(n) }),
		Unread: unread,
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func toView(n models.Notification) View {
	view := View{
		ID:        n.ID,
		Type:      n.Type,
		Severity:  n.Severity,
		MetricKey: n.MetricKey,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if n.Type == enums.NotificationTypeQuotaAlert && len(n.Payload) > 0 {
		var event Event
		// rows with an unreadable payload still render their text
		if err := json.Unmarshal(n.Payload, &event); err == nil {
			view.Usage = &event
		}
	}
	return view
}

func (s *service) MarkRead(ctx context.Context, tenantID, notificationID uuid.UUID) error {
	switch {
	case tenantID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, tenantID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	count, err := s.repo.MarkAllRead(ctx, tenantID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
