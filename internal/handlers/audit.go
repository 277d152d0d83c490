package handlers

import (
	"log/slog"
	"time"

	"okul-erp/models"

	"gorm.io/gorm"
)

// Route-log stage labels. These are user-facing Turkish strings and are
// stored byte-exact.
const (
	RouteStarted       = "Başlatan"
	RouteRequested     = "Talep edildi"
	RouteApproved      = "Onaylandı"
	RouteRevised       = "Revize edildi"
	RouteChanged       = "Değişiklik Yapıldı"
	RouteAdminApproved = "Admin Approved"
	RouteAdminOverride = "Admin Override"
)

// appendRoute writes one append-only route entry. A failed append after
// the primary mutation committed is logged and never fails the caller.
func appendRoute(db *gorm.DB, requestID uint, stage, userName string) {
	route := models.RequestRoute{
		RequestID: requestID,
		Stage:     stage,
		UserName:  userName,
		Time:      time.Now(),
	}
	if err := db.Create(&route).Error; err != nil {
		slog.Warn("Failed to append request route", "request_id", requestID, "stage", stage, "error", err)
	}
}
