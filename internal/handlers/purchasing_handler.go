package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"okul-erp/config"
	"okul-erp/internal/workflow"
	"okul-erp/models"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type requestItemInput struct {
	ItemName    string          `json:"itemName" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice" binding:"required"`
	Description string          `json:"description"`
}

func buildRequestItems(inputs []requestItemInput) []models.PurchasingRequestItem {
	items := make([]models.PurchasingRequestItem, 0, len(inputs))
	for _, it := range inputs {
		items = append(items, models.PurchasingRequestItem{
			ItemName:    it.ItemName,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice.Round(2),
			Description: it.Description,
			TotalPrice:  it.Quantity.Mul(it.UnitPrice).Round(2),
		})
	}
	return items
}

// recomputeRequestAggregates rewrites total_amount and the side statuses
// from the request's items. Callers run it inside the same transaction
// as the decision writes so readers never see a stale total.
func recomputeRequestAggregates(tx *gorm.DB, requestID uint) error {
	var items []models.PurchasingRequestItem
	if err := tx.Where("request_id = ?", requestID).Find(&items).Error; err != nil {
		return err
	}

	decisions := make([]workflow.ItemDecision, 0, len(items))
	modSide := make([]*string, 0, len(items))
	coordSide := make([]*string, 0, len(items))
	for _, it := range items {
		decisions = append(decisions, workflow.ItemDecision{
			TotalPrice:          it.TotalPrice,
			ModDecision:         it.ModDecision,
			CoordinatorDecision: it.CoordinatorDecision,
		})
		modSide = append(modSide, it.ModDecision)
		coordSide = append(coordSide, it.CoordinatorDecision)
	}

	var request models.PurchasingRequest
	if err := tx.First(&request, requestID).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"total_amount": workflow.TotalAmount(decisions),
	}
	// A Revised side status is sticky until the next decision pass.
	if request.ModStatus == nil || *request.ModStatus != workflow.SideRevised {
		updates["mod_status"] = workflow.SideStatus(modSide)
	}
	if request.CoordinatorStatus == nil || *request.CoordinatorStatus != workflow.SideRevised {
		updates["coordinator_status"] = workflow.SideStatus(coordSide)
	}
	return tx.Model(&models.PurchasingRequest{}).Where("id = ?", requestID).Updates(updates).Error
}

// loadRequest loads a request with items and routes or writes a 404.
func loadRequest(c *gin.Context, id string) (*models.PurchasingRequest, bool) {
	var request models.PurchasingRequest
	err := config.DB.Preload("Items").Preload("Routes", func(db *gorm.DB) *gorm.DB {
		return db.Order("time asc")
	}).Preload("User").First(&request, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	return &request, true
}

// ---- author side ----

// CreatePurchasingRequestHandler opens a Pending request for the caller.
func CreatePurchasingRequestHandler(c *gin.Context) {
	var input struct {
		Items []requestItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	request := models.PurchasingRequest{
		UserID: currentUserID(c),
		Status: workflow.RequestPending,
		Items:  buildRequestItems(input.Items),
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		return recomputeRequestAggregates(tx, request.ID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create request"})
		return
	}

	appendRoute(config.DB, request.ID, RouteStarted, currentUserName(c))
	c.JSON(http.StatusCreated, request)
}

// ListMyRequestsHandler returns the caller's requests, newest first.
func ListMyRequestsHandler(c *gin.Context) {
	query := config.DB.Where("user_id = ?", currentUserID(c)).Order("created_at desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}

	var requests []models.PurchasingRequest
	var totalRows int64
	query.Model(&models.PurchasingRequest{}).Count(&totalRows)
	if err := query.Preload("Items").Scopes(Paginate(c)).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, requests, totalRows))
}

// GetPurchasingRequestHandler returns one request with items and route log.
func GetPurchasingRequestHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.UserID != currentUserID(c) && !hasPermission(c, "purchasing_view_all") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	c.JSON(http.StatusOK, request)
}

// UpdatePurchasingRequestHandler replaces the item list of the caller's
// own request. Approved requests are immutable; updating a revised
// request clears the revised flags and logs the change.
func UpdatePurchasingRequestHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be modified"})
		return
	}

	var input struct {
		Items []requestItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", request.ID).
			Delete(&models.PurchasingRequestItem{}).Error; err != nil {
			return err
		}
		items := buildRequestItems(input.Items)
		for i := range items {
			items[i].RequestID = request.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		// Editing after a revise resets that side back to undecided.
		if request.Status == workflow.RequestRevised || request.Status == workflow.RequestRevisedByUp {
			updates["status"] = workflow.RequestPending
			updates["mod_status"] = nil
			updates["coordinator_status"] = nil
			updates["revise_comment"] = ""
			updates["revise_comment_by_coordinator"] = ""
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.PurchasingRequest{}).
				Where("id = ?", request.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return recomputeRequestAggregates(tx, request.ID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update request"})
		return
	}

	appendRoute(config.DB, request.ID, RouteChanged, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeletePurchasingRequestHandler soft-deletes the caller's own request.
func DeletePurchasingRequestHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be deleted"})
		return
	}
	if err := config.DB.Delete(request).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---- moderator side ----

// moderatorScope narrows requests to authors assigned to the caller as
// their budget moderator, within the caller's school.
func moderatorScope(c *gin.Context, db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN users ON users.id = purchasing_requests.user_id").
		Where("users.school_id = ?", currentSchoolID(c)).
		Where("users.budget_mod = ?", currentUserID(c))
}

// ListAssignedRequestsHandler returns the requests of the caller's
// assigned authors.
func ListAssignedRequestsHandler(c *gin.Context) {
	query := moderatorScope(c, config.DB.Model(&models.PurchasingRequest{})).
		Order("purchasing_requests.created_at desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("purchasing_requests.status = ?", v)
	}

	var requests []models.PurchasingRequest
	var totalRows int64
	query.Count(&totalRows)
	if err := query.Preload("Items").Preload("User").Scopes(Paginate(c)).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, requests, totalRows))
}

type requestDecisionInput struct {
	Items []struct {
		ItemID   uint   `json:"itemId" binding:"required"`
		Decision string `json:"decision" binding:"required"`
	} `json:"items" binding:"required,min=1,dive"`
}

// applyRequestDecisions writes one side's decisions and recomputes the
// aggregates, all in one transaction.
func applyRequestDecisions(c *gin.Context, requestID uint, column string) bool {
	var input requestDecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return false
	}
	for _, it := range input.Items {
		if it.Decision != workflow.DecisionNeeded && it.Decision != workflow.DecisionNotNeeded {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be needed or not-needed"})
			return false
		}
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for _, it := range input.Items {
			result := tx.Model(&models.PurchasingRequestItem{}).
				Where("id = ? AND request_id = ?", it.ItemID, requestID).
				Update(column, it.Decision)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("item %d does not belong to request %d", it.ItemID, requestID)
			}
		}
		return recomputeRequestAggregates(tx, requestID)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// ModeratorDecideItemsHandler records needed / not-needed verdicts on
// the moderator side.
func ModeratorDecideItemsHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !moderatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be modified"})
		return
	}

	if applyRequestDecisions(c, request.ID, "mod_decision") {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// SendRequestHandler forwards a fully decided request to the coordinator.
func SendRequestHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !moderatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Request is already approved"})
		return
	}
	if request.ModStatus == nil || *request.ModStatus != workflow.SideDecided {
		c.JSON(http.StatusConflict, gin.H{"error": "All items must be decided before sending"})
		return
	}

	if err := config.DB.Model(request).
		Update("status", workflow.RequestForwarded).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to forward request"})
		return
	}
	appendRoute(config.DB, request.ID, RouteRequested, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": workflow.RequestForwarded})
}

// ModeratorReviseHandler sends the request back to its author.
func ModeratorReviseHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !moderatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be revised"})
		return
	}

	var input struct {
		Comment string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	revised := workflow.SideRevised
	err := config.DB.Model(request).Updates(map[string]interface{}{
		"status":         workflow.RequestRevised,
		"mod_status":     revised,
		"revise_comment": input.Comment,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revise request"})
		return
	}
	appendRoute(config.DB, request.ID, RouteRevised, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": workflow.RequestRevised})
}

// CreateOnBehalfHandler opens a request for one of the moderator's
// assigned authors. The header is pre-decided and the items arrive
// seeded as needed, so the request is immediately sendable.
func CreateOnBehalfHandler(c *gin.Context) {
	var input struct {
		UserID uint               `json:"userId" binding:"required"`
		Items  []requestItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var author models.User
	if err := config.DB.First(&author, input.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Author not found"})
		return
	}
	if author.SchoolID != currentSchoolID(c) || author.BudgetMod == nil || *author.BudgetMod != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not assigned to you"})
		return
	}

	decided := workflow.SideDecided
	needed := workflow.DecisionNeeded
	request := models.PurchasingRequest{
		UserID:    author.ID,
		Status:    workflow.RequestPending,
		ModStatus: &decided,
		Items:     buildRequestItems(input.Items),
	}
	for i := range request.Items {
		request.Items[i].ModDecision = &needed
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		return recomputeRequestAggregates(tx, request.ID)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create request"})
		return
	}

	appendRoute(config.DB, request.ID, RouteStarted, currentUserName(c))
	c.JSON(http.StatusCreated, request)
}

func moderatorOwnsRequest(c *gin.Context, request *models.PurchasingRequest) bool {
	return request.User.SchoolID == currentSchoolID(c) &&
		request.User.BudgetMod != nil && *request.User.BudgetMod == currentUserID(c)
}

// ---- coordinator side ----

// ListSchoolRequestsHandler returns forwarded requests of the caller's
// school.
func ListSchoolRequestsHandler(c *gin.Context) {
	query := config.DB.Model(&models.PurchasingRequest{}).
		Joins("JOIN users ON users.id = purchasing_requests.user_id").
		Where("users.school_id = ?", currentSchoolID(c)).
		Order("purchasing_requests.created_at desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("purchasing_requests.status = ?", v)
	} else {
		query = query.Where("purchasing_requests.status = ?", workflow.RequestForwarded)
	}

	var requests []models.PurchasingRequest
	var totalRows int64
	query.Count(&totalRows)
	if err := query.Preload("Items").Preload("User").Scopes(Paginate(c)).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, requests, totalRows))
}

// CoordinatorDecideItemsHandler records verdicts on the coordinator side.
func CoordinatorDecideItemsHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !coordinatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be modified"})
		return
	}

	if applyRequestDecisions(c, request.ID, "coordinator_decision") {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// verificationClaims is the signed payload stored on approval and
// checked on verify.
type verificationClaims struct {
	RequestID  uint   `json:"request_id"`
	ApprovedAt string `json:"approved_at"`
	jwt.RegisteredClaims
}

// ApproveRequestHandler finalizes a forwarded request. The minted token
// makes the printed document verifiable offline.
func ApproveRequestHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !coordinatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Request is already approved"})
		return
	}
	if request.Status != workflow.RequestForwarded {
		c.JSON(http.StatusConflict, gin.H{"error": "Only forwarded requests can be approved"})
		return
	}

	now := time.Now()
	claims := verificationClaims{
		RequestID:  request.ID,
		ApprovedAt: now.Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.JwtKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign verification token"})
		return
	}

	decided := workflow.SideDecided
	err = config.DB.Model(request).Updates(map[string]interface{}{
		"status":             workflow.RequestApproved,
		"coordinator_status": decided,
		"verification_token": token,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve request"})
		return
	}
	appendRoute(config.DB, request.ID, RouteApproved, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": workflow.RequestApproved, "verificationToken": token})
}

// CoordinatorReviseHandler sends the request back down the chain.
func CoordinatorReviseHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if !coordinatorOwnsRequest(c, request) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Approved requests cannot be revised"})
		return
	}

	var input struct {
		Comment string `json:"comment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	revised := workflow.SideRevised
	err := config.DB.Model(request).Updates(map[string]interface{}{
		"status":                        workflow.RequestRevisedByUp,
		"coordinator_status":            revised,
		"revise_comment_by_coordinator": input.Comment,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revise request"})
		return
	}
	appendRoute(config.DB, request.ID, RouteRevised, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": workflow.RequestRevisedByUp})
}

// VerifyRequestHandler checks a supplied token against the stored one
// and the signing key. Public endpoint: the printed QR code lands here.
func VerifyRequestHandler(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	claims := &verificationClaims{}
	parsed, err := jwt.ParseWithClaims(input.Token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return config.JwtKey, nil
	})
	if err != nil || !parsed.Valid {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	var request models.PurchasingRequest
	if err := config.DB.First(&request, claims.RequestID).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	if request.VerificationToken == nil || *request.VerificationToken != input.Token {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"requestId":  claims.RequestID,
		"approvedAt": claims.ApprovedAt,
	})
}

func coordinatorOwnsRequest(c *gin.Context, request *models.PurchasingRequest) bool {
	return request.User.SchoolID == currentSchoolID(c)
}

// ---- accounting side ----

// ListApprovedRequestsHandler returns approved requests of the caller's
// school for printing.
func ListApprovedRequestsHandler(c *gin.Context) {
	query := config.DB.Model(&models.PurchasingRequest{}).
		Joins("JOIN users ON users.id = purchasing_requests.user_id").
		Where("users.school_id = ?", currentSchoolID(c)).
		Where("purchasing_requests.status = ?", workflow.RequestApproved).
		Order("purchasing_requests.updated_at desc")
	if v := c.Query("printed"); v != "" {
		query = query.Where("purchasing_requests.is_printed = ?", v == "true")
	}

	var requests []models.PurchasingRequest
	var totalRows int64
	query.Count(&totalRows)
	if err := query.Preload("Items").Preload("User").Scopes(Paginate(c)).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, requests, totalRows))
}

// MarkPrintedHandler flags an approved request as printed. Nothing else
// on the request may change here.
func MarkPrintedHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.User.SchoolID != currentSchoolID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status != workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Only approved requests can be printed"})
		return
	}

	if err := config.DB.Model(request).Update("is_printed", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark as printed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PrintPayloadHandler returns the data the printable document is built
// from, including the total amount spelled out in words.
func PrintPayloadHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.User.SchoolID != currentSchoolID(c) && !hasPermission(c, "purchasing_view_all") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if request.Status != workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Only approved requests can be printed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request":       request,
		"amountInWords": amountInWords(request.TotalAmount),
	})
}

// amountInWords spells out a two-decimal amount, e.g.
// "one hundred twenty-three and 45/100".
func amountInWords(amount decimal.Decimal) string {
	whole := amount.IntPart()
	cents := amount.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()
	words := num2words.Convert(int(whole))
	if cents == 0 {
		return words
	}
	return fmt.Sprintf("%s and %02d/100", words, cents)
}

// ---- admin side ----

// ListAllRequestsHandler returns every request, unscoped.
func ListAllRequestsHandler(c *gin.Context) {
	query := config.DB.Model(&models.PurchasingRequest{}).Order("created_at desc")
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}
	if v := c.Query("school"); v != "" {
		query = query.Joins("JOIN users ON users.id = purchasing_requests.user_id").
			Where("users.school_id = ?", v)
	}

	var requests []models.PurchasingRequest
	var totalRows int64
	query.Count(&totalRows)
	if err := query.Preload("Items").Preload("User").Scopes(Paginate(c)).Find(&requests).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch requests"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, requests, totalRows))
}

// ForceApproveHandler approves a request regardless of its state,
// bypassing the decided checks. The route log records the override.
func ForceApproveHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}
	if request.Status == workflow.RequestApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Request is already approved"})
		return
	}

	now := time.Now()
	claims := verificationClaims{
		RequestID:  request.ID,
		ApprovedAt: now.Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.JwtKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign verification token"})
		return
	}

	decided := workflow.SideDecided
	err = config.DB.Model(request).Updates(map[string]interface{}{
		"status":             workflow.RequestApproved,
		"coordinator_status": decided,
		"verification_token": token,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve request"})
		return
	}
	appendRoute(config.DB, request.ID, RouteAdminApproved, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": workflow.RequestApproved})
}

// OverrideItemDecisionsHandler rewrites item decisions on either side.
// The override lands in the route log even when the values did not
// change, so the audit trail shows every admin touch.
func OverrideItemDecisionsHandler(c *gin.Context) {
	request, ok := loadRequest(c, c.Param("id"))
	if !ok {
		return
	}

	var input struct {
		Items []struct {
			ItemID              uint    `json:"itemId" binding:"required"`
			ModDecision         *string `json:"modDecision"`
			CoordinatorDecision *string `json:"coordinatorDecision"`
		} `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	for _, it := range input.Items {
		for _, d := range []*string{it.ModDecision, it.CoordinatorDecision} {
			if d != nil && *d != workflow.DecisionNeeded && *d != workflow.DecisionNotNeeded {
				c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be needed or not-needed"})
				return
			}
		}
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for _, it := range input.Items {
			updates := map[string]interface{}{}
			if it.ModDecision != nil {
				updates["mod_decision"] = strings.TrimSpace(*it.ModDecision)
			}
			if it.CoordinatorDecision != nil {
				updates["coordinator_decision"] = strings.TrimSpace(*it.CoordinatorDecision)
			}
			if len(updates) == 0 {
				continue
			}
			result := tx.Model(&models.PurchasingRequestItem{}).
				Where("id = ? AND request_id = ?", it.ItemID, request.ID).
				Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("item %d does not belong to request %d", it.ItemID, request.ID)
			}
		}
		return recomputeRequestAggregates(tx, request.ID)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appendRoute(config.DB, request.ID, RouteAdminOverride, currentUserName(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
