package notifications

import "github.com/forumlens/audience-insights/internal/models"

// NotificationInterface defines the contract for digest delivery
type NotificationInterface interface {
	SendReport(report *models.AnalysisReport) error
}
