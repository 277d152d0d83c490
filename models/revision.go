package models

import "gorm.io/gorm"

// RevisionAnswer is an author's reply to a reviewer's revision request.
// The latest answer per (budget, item) is what the revision ledger shows.
type RevisionAnswer struct {
	gorm.Model
	BudgetID   uint   `json:"budgetId" gorm:"index;not null"`
	ItemID     uint   `json:"itemId" gorm:"index;not null"`
	AnswerText string `json:"answerText" gorm:"not null"`
	AuthorID   uint   `json:"authorId" gorm:"not null"`
}
