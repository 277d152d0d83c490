package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchasingRequest is a direct purchase request, independent of the
// budget pipeline. Status flow:
// Pending -> Forwarded -> (Revised | RevisedByUp | Approved).
// Approved is terminal; the header and its items become read-only.
type PurchasingRequest struct {
	ID     uint `json:"request_id" gorm:"primaryKey"`
	UserID uint `json:"userId" gorm:"index;not null"`
	User   User `json:"user" gorm:"foreignKey:UserID"`
	Status string `json:"status" gorm:"default:'Pending'"`
	// Decided, Incomplete, Revised or null.
	ModStatus                *string         `json:"modStatus"`
	CoordinatorStatus        *string         `json:"coordinatorStatus"`
	ReviseComment            string          `json:"reviseComment"`
	ReviseCommentByCoordinator string        `json:"reviseCommentByCoordinator"`
	TotalAmount              decimal.Decimal `json:"totalAmount" gorm:"type:numeric(14,2)"`
	IsPrinted                bool            `json:"isPrinted" gorm:"default:false"`
	VerificationToken        *string         `json:"verificationToken"`
	CreatedAt                time.Time       `json:"createdAt"`
	UpdatedAt                time.Time       `json:"updatedAt"`
	DeletedAt                gorm.DeletedAt  `json:"-" gorm:"index"`

	Items  []PurchasingRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	Routes []RequestRoute          `json:"routes,omitempty" gorm:"foreignKey:RequestID"`
}

// PurchasingRequestItem is one line of a purchase request. Decisions are
// "needed" / "not-needed"; a null decision counts as needed in the total.
type PurchasingRequestItem struct {
	ID          uint            `json:"item_id" gorm:"primaryKey"`
	RequestID   uint            `json:"requestId" gorm:"index;not null"`
	ItemName    string          `json:"itemName" gorm:"not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:numeric(12,2)"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:numeric(12,2)"`
	Description string          `json:"description"`
	TotalPrice  decimal.Decimal `json:"totalPrice" gorm:"type:numeric(14,2)"`

	ModDecision         *string `json:"modDecision"`
	CoordinatorDecision *string `json:"coordinatorDecision"`
}

// RequestRoute is the append-only audit trail of a purchase request.
// Stage strings carry user-facing Turkish labels and are stored verbatim.
type RequestRoute struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RequestID uint      `json:"requestId" gorm:"index;not null"`
	Stage     string    `json:"stage" gorm:"not null"`
	UserName  string    `json:"user"`
	Time      time.Time `json:"time"`
}
