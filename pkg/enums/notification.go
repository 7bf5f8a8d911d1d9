package enums

// NotificationType maps to the notification_type column.
type NotificationType string

const (
	NotificationTypeQuotaAlert    NotificationType = "quota_alert"
	NotificationTypeBillingUpdate NotificationType = "billing_update"
)

var notificationTypes = []NotificationType{NotificationTypeQuotaAlert, NotificationTypeBillingUpdate}

func (n NotificationType) IsValid() bool { return oneOf(n, notificationTypes) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", value, notificationTypes)
}
