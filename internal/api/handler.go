package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/prizeworks/payoutd/internal/settle"
	"github.com/prizeworks/payoutd/internal/store"
)

// Handler exposes the thin trigger surface: it creates records, kicks the
// settlement engine, and relays its structured results. No authentication
// and no rendering live here.
type Handler struct {
	st   *store.Store
	orch *settle.Orchestrator
	jobs *settle.OnDemand
	log  *zap.Logger
}

func NewHandler(st *store.Store, orch *settle.Orchestrator, jobs *settle.OnDemand, log *zap.Logger) *Handler {
	return &Handler{st: st, orch: orch, jobs: jobs, log: log}
}

// Register mounts all routes on the group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/contests", h.createContest)
	rg.GET("/contests", h.listContests)
	rg.GET("/contests/:id", h.getContest)
	rg.POST("/contests/:id/entries", h.enterContest)
	rg.POST("/contests/:id/settle", h.settleContest)

	rg.PUT("/communities/:id/treasury", h.setTreasury)
	rg.GET("/communities/:id/transfers", h.listTransfers)
	rg.PUT("/recipients/:id/wallet", h.linkWallet)

	rg.POST("/tasks", h.createTask)
	rg.POST("/tasks/:id/execute", h.executeTask)

	rg.POST("/proofs", h.createProof)
	rg.POST("/proofs/:id/approve", h.approveProof)
	rg.POST("/proofs/:id/reject", h.rejectProof)
}

// ── Contests ────────────────────────────────────────────────────────────────

type createContestRequest struct {
	CommunityID   string          `json:"community_id" binding:"required"`
	ChannelID     string          `json:"channel_id"`
	Title         string          `json:"title" binding:"required"`
	PrizeAmount   decimal.Decimal `json:"prize_amount" binding:"required"`
	Currency      string          `json:"currency"`
	WinnerCount   int             `json:"winner_count"`
	MaxEntries    int             `json:"max_entries"`
	DurationHours int             `json:"duration_hours"`
}

func (h *Handler) createContest(c *gin.Context) {
	var req createContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if req.WinnerCount <= 0 {
		req.WinnerCount = 1
	}
	if req.MaxEntries <= 0 {
		req.MaxEntries = 100
	}
	if req.DurationHours <= 0 {
		req.DurationHours = 24
	}

	contest := &store.Contest{
		CommunityID: req.CommunityID,
		ChannelID:   req.ChannelID,
		Title:       req.Title,
		PrizeAmount: req.PrizeAmount,
		Currency:    req.Currency,
		WinnerCount: req.WinnerCount,
		MaxEntries:  req.MaxEntries,
		ExpiresAt:   time.Now().Add(time.Duration(req.DurationHours) * time.Hour).Unix(),
	}
	if _, err := h.st.CreateContest(c.Request.Context(), contest); err != nil {
		h.log.Error("create contest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create contest"})
		return
	}
	c.JSON(http.StatusCreated, contestJSON(contest))
}

func (h *Handler) listContests(c *gin.Context) {
	contests, err := h.st.ListContests(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list contests"})
		return
	}
	out := make([]gin.H, 0, len(contests))
	for i := range contests {
		out = append(out, contestJSON(&contests[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getContest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	contest, err := h.st.GetContest(c.Request.Context(), id)
	if err != nil {
		contestError(c, err)
		return
	}
	c.JSON(http.StatusOK, contestJSON(contest))
}

type enterRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

func (h *Handler) enterContest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.st.AddEntry(c.Request.Context(), id, req.RecipientID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"entered": true})
	case errors.Is(err, store.ErrContestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "contest not found"})
	case errors.Is(err, store.ErrContestClosed),
		errors.Is(err, store.ErrDuplicateEntry),
		errors.Is(err, store.ErrEntryCapReached):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enter contest"})
	}
}

// settleContest triggers settlement immediately (admin use). The engine's
// status CAS makes a duplicate trigger a conflict, not a double payout.
func (h *Handler) settleContest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	contest, err := h.st.GetContest(ctx, id)
	if err != nil {
		contestError(c, err)
		return
	}
	report, err := h.orch.Settle(ctx, contest)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "contest already settled"})
			return
		}
		h.log.Error("settle contest", zap.Int64("contest", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settle contest"})
		return
	}
	_ = h.st.RemoveDue(ctx, id)
	c.JSON(http.StatusOK, report)
}

// ── Communities / recipients ────────────────────────────────────────────────

type treasuryRequest struct {
	Address  string `json:"address" binding:"required"`
	LinkedBy string `json:"linked_by"`
}

func (h *Handler) setTreasury(c *gin.Context) {
	var req treasuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct := store.FundingAccount{
		CommunityID: c.Param("id"),
		Address:     req.Address,
		LinkedBy:    req.LinkedBy,
	}
	if err := h.st.SetFundingAccount(c.Request.Context(), acct); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "set treasury"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"community_id": acct.CommunityID, "address": acct.Address})
}

func (h *Handler) listTransfers(c *gin.Context) {
	recs, err := h.st.ListTransfers(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transfers"})
		return
	}
	c.JSON(http.StatusOK, recs)
}

type walletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *Handler) linkWallet(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.st.LinkRecipientAccount(c.Request.Context(), c.Param("id"), req.Address); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "link wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipient_id": c.Param("id"), "address": req.Address})
}

// ── Tasks ───────────────────────────────────────────────────────────────────

type createTaskRequest struct {
	CommunityID      string          `json:"community_id" binding:"required"`
	CreatorID        string          `json:"creator_id"`
	RecipientAddress string          `json:"recipient_address" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Description      string          `json:"description"`
}

func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task := &store.Task{
		CommunityID:      req.CommunityID,
		CreatorID:        req.CreatorID,
		RecipientAddress: req.RecipientAddress,
		Amount:           req.Amount,
		Description:      req.Description,
	}
	if _, err := h.st.CreateTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create task"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                task.ID,
		"community_id":      task.CommunityID,
		"recipient_address": task.RecipientAddress,
		"amount":            task.Amount,
		"status":            task.Status,
	})
}

func (h *Handler) executeTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	outcome, err := h.jobs.ExecuteTask(c.Request.Context(), id)
	if err != nil {
		onDemandError(c, err, store.ErrTaskNotFound)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// ── Proofs ──────────────────────────────────────────────────────────────────

type createProofRequest struct {
	CommunityID string          `json:"community_id" binding:"required"`
	RecipientID string          `json:"recipient_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency"`
}

func (h *Handler) createProof(c *gin.Context) {
	var req createProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	proof := &store.Proof{
		CommunityID: req.CommunityID,
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		Currency:    req.Currency,
	}
	if _, err := h.st.CreateProof(c.Request.Context(), proof); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create proof"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": proof.ID, "status": proof.Status})
}

type approveProofRequest struct {
	Reviewer string `json:"reviewer"`
	Pay      bool   `json:"pay"`
}

func (h *Handler) approveProof(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req approveProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.jobs.ApproveProof(c.Request.Context(), id, req.Reviewer, req.Pay)
	if err != nil {
		onDemandError(c, err, store.ErrProofNotFound)
		return
	}
	resp := gin.H{"approved": true}
	if outcome != nil {
		resp["outcome"] = outcome
	}
	c.JSON(http.StatusOK, resp)
}

type rejectProofRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

func (h *Handler) rejectProof(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "rejected by admin"
	}
	err := h.st.RejectProof(c.Request.Context(), id, req.Reason, req.Reviewer)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"rejected": true})
	case errors.Is(err, store.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "proof already reviewed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reject proof"})
	}
}

// ── Helpers ─────────────────────────────────────────────────────────────────

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func contestError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrContestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "contest not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "contest lookup"})
}

func onDemandError(c *gin.Context, err error, notFound error) {
	switch {
	case errors.Is(err, notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, settle.ErrNoTreasury):
		c.JSON(http.StatusConflict, gin.H{"error": "no funding account configured"})
	case errors.Is(err, store.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment failed"})
	}
}

func contestJSON(c *store.Contest) gin.H {
	return gin.H{
		"id":           c.ID,
		"community_id": c.CommunityID,
		"channel_id":   c.ChannelID,
		"title":        c.Title,
		"prize_amount": c.PrizeAmount,
		"currency":     c.Currency,
		"winner_count": c.WinnerCount,
		"max_entries":  c.MaxEntries,
		"status":       c.Status,
		"created_at":   c.CreatedAt,
		"expires_at":   c.ExpiresAt,
	}
}
