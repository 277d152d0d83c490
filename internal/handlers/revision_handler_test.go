package handlers

import (
	"net/http"
	"testing"
	"time"

	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRevisionLedgerAndAging(t *testing.T) {
	db := setupTestDB(t)
	f := buildReviewFixture(t, db, 3)

	now := time.Now()
	ages := []int{0, 3, 9}
	for i, item := range f.items {
		require.NoError(t, db.Model(&models.BudgetItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"revision_state": workflow.RevisionPending,
			"revise_reason":  "check quantities",
			"revised_at":     now.AddDate(0, 0, -ages[i]),
		}).Error)
	}

	w := call(t, ListRevisionsHandler, f.caller(workflow.StageNeeded),
		http.MethodGet, "/api/revisions", nil, nil)
	assertStatus(t, w, http.StatusOK)
	var rows []revisionRow
	decodeBody(t, w, &rows)
	require.Len(t, rows, 3)

	byItem := map[uint]revisionRow{}
	for _, row := range rows {
		byItem[row.ItemID] = row
	}
	require.Equal(t, 0, byItem[f.items[0].ID].AgingDays)
	require.Equal(t, 3, byItem[f.items[1].ID].AgingDays)
	require.Equal(t, 9, byItem[f.items[2].ID].AgingDays)

	w = call(t, RevisionSummaryHandler, f.caller(workflow.StageNeeded),
		http.MethodGet, "/api/revisions/summary", nil, nil)
	assertStatus(t, w, http.StatusOK)
	var summary struct {
		Total   int            `json:"total"`
		Buckets map[string]int `json:"buckets"`
	}
	decodeBody(t, w, &summary)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 1, summary.Buckets["0-1"])
	require.Equal(t, 1, summary.Buckets["2-3"])
	require.Equal(t, 1, summary.Buckets[">7"])
}

func TestAnswerMovesStateAndResetsAging(t *testing.T) {
	db := setupTestDB(t)
	f := buildReviewFixture(t, db, 1)
	item := f.items[0]

	require.NoError(t, db.Model(&models.BudgetItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"revision_state": workflow.RevisionPending,
		"revise_reason":  "check quantities",
		"revised_at":     time.Now().AddDate(0, 0, -5),
	}).Error)

	// Only the budget author may answer.
	w := call(t, AnswerRevisionHandler,
		testCaller{UserID: 777, SchoolID: f.school.ID},
		http.MethodPost, "/api/revisions/answer", nil, gin.H{
			"itemId": item.ID, "answerText": "quantities are correct",
		})
	assertStatus(t, w, http.StatusForbidden)

	w = call(t, AnswerRevisionHandler,
		testCaller{UserID: f.author.ID, SchoolID: f.school.ID},
		http.MethodPost, "/api/revisions/answer", nil, gin.H{
			"itemId": item.ID, "answerText": "quantities are correct",
		})
	assertStatus(t, w, http.StatusCreated)

	got := reloadItem(t, db, item.ID)
	require.Equal(t, workflow.RevisionAnswered, got.RevisionState)

	// The fresh answer resets the clock.
	w = call(t, ListRevisionsHandler, f.caller(workflow.StageNeeded),
		http.MethodGet, "/api/revisions", nil, nil)
	assertStatus(t, w, http.StatusOK)
	var rows []revisionRow
	decodeBody(t, w, &rows)
	require.Len(t, rows, 1)
	require.Equal(t, 0, rows[0].AgingDays)
	require.NotNil(t, rows[0].LatestAnswer)
	require.Equal(t, "quantities are correct", *rows[0].LatestAnswer)
}

func TestResolveRequiresCurrentStepOwner(t *testing.T) {
	db := setupTestDB(t)
	f := buildReviewFixture(t, db, 1)
	item := f.items[0]

	require.NoError(t, db.Model(&models.BudgetItem{}).Where("id = ?", item.ID).
		Update("revision_state", workflow.RevisionAnswered).Error)

	// The item sits on logistics; the cost department cannot resolve.
	w := call(t, ResolveRevisionHandler, f.caller(workflow.StageCost),
		http.MethodPost, "/api/revisions/resolve", nil, gin.H{"itemId": item.ID})
	assertStatus(t, w, http.StatusForbidden)

	w = call(t, ResolveRevisionHandler, f.caller(workflow.StageLogistics),
		http.MethodPost, "/api/revisions/resolve", nil, gin.H{"itemId": item.ID})
	assertStatus(t, w, http.StatusOK)

	got := reloadItem(t, db, item.ID)
	require.Equal(t, workflow.RevisionResolved, got.RevisionState)

	// Resolved items leave the ledger.
	w = call(t, ListRevisionsHandler, f.caller(workflow.StageNeeded),
		http.MethodGet, "/api/revisions", nil, nil)
	assertStatus(t, w, http.StatusOK)
	var rows []revisionRow
	decodeBody(t, w, &rows)
	require.Empty(t, rows)
}

func TestFinalizedItemsLeaveLedger(t *testing.T) {
	db := setupTestDB(t)
	f := buildReviewFixture(t, db, 1)
	item := f.items[0]

	status := workflow.FinalApproved
	require.NoError(t, db.Model(&models.BudgetItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"revision_state":        workflow.RevisionPending,
		"revised_at":            time.Now(),
		"final_purchase_status": status,
	}).Error)

	w := call(t, ListRevisionsHandler, f.caller(workflow.StageNeeded),
		http.MethodGet, "/api/revisions", nil, nil)
	assertStatus(t, w, http.StatusOK)
	var rows []revisionRow
	decodeBody(t, w, &rows)
	require.Empty(t, rows)
}
