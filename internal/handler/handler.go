package handler

import (
	"strconv"
	"time"

	"talentpay/internal/apperr"
	"talentpay/internal/config"
	"talentpay/internal/infrastructure/lock"
	"talentpay/internal/service"
	"talentpay/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	feeConfigService  *service.FeeConfigService
	walletService     *service.WalletService
	milestoneService  *service.MilestoneService
	teamFundService   *service.TeamFundService
	withdrawalService *service.WithdrawalService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, locker *lock.Locker, cfg *config.Config) *Handler {
	return &Handler{
		feeConfigService:  service.NewFeeConfigService(db),
		walletService:     service.NewWalletService(db),
		milestoneService:  service.NewMilestoneService(db, locker, cfg),
		teamFundService:   service.NewTeamFundService(db, locker, cfg),
		withdrawalService: service.NewWithdrawalService(db, locker, cfg),
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ============================================================
// 分账配置（管理员）
// ============================================================

// ListFeeConfigs GET /api/v1/fee-configs
func (h *Handler) ListFeeConfigs(c *gin.Context) {
	configs, err := h.feeConfigService.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, configs)
}

// CreateFeeConfig POST /api/v1/fee-configs
func (h *Handler) CreateFeeConfig(c *gin.Context) {
	var req service.CreateFeeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.CreatedBy = actorID(c)

	cfg, err := h.feeConfigService.Create(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// UpdateFeeConfig PUT /api/v1/fee-configs/:id
func (h *Handler) UpdateFeeConfig(c *gin.Context) {
	var rates service.FeeRates
	if err := c.ShouldBindJSON(&rates); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	cfg, err := h.feeConfigService.Update(c.Request.Context(), c.Param("id"), rates, actorID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// ActivateFeeConfig POST /api/v1/fee-configs/:id/activate
func (h *Handler) ActivateFeeConfig(c *gin.Context) {
	cfg, err := h.feeConfigService.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// ============================================================
// 钱包
// ============================================================

// GetWalletBalance GET /api/v1/wallets/:id/balance
func (h *Handler) GetWalletBalance(c *gin.Context) {
	balance, err := h.walletService.GetWalletBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, balance)
}

// ListWalletTransactions GET /api/v1/wallets/:id/transactions?page=1&page_size=20
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.walletService.ListTransactions(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// ============================================================
// 里程碑与发放
// ============================================================

// RegisterMilestone POST /api/v1/milestones
// 项目系统同步里程碑
func (h *Handler) RegisterMilestone(c *gin.Context) {
	var req service.RegisterMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	milestone, err := h.milestoneService.RegisterMilestone(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, milestone)
}

// GetMilestone GET /api/v1/milestones/:id
func (h *Handler) GetMilestone(c *gin.Context) {
	milestone, err := h.milestoneService.GetMilestone(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, milestone)
}

// Deposit POST /api/v1/milestones/:id/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req service.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.milestoneService.Deposit(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// PreviewDisbursement GET /api/v1/milestones/:id/disbursement/preview
func (h *Handler) PreviewDisbursement(c *gin.Context) {
	preview, err := h.milestoneService.PreviewDisbursement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, preview)
}

// CalculateDisbursement POST /api/v1/milestones/:id/disbursement
func (h *Handler) CalculateDisbursement(c *gin.Context) {
	var req service.CalculateDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.milestoneService.CalculateDisbursement(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, record)
}

// ListDisbursements GET /api/v1/milestones/:id/disbursements
func (h *Handler) ListDisbursements(c *gin.Context) {
	records, err := h.milestoneService.ListDisbursements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, records)
}

// ExecuteDisbursement POST /api/v1/disbursements/:id/execute
func (h *Handler) ExecuteDisbursement(c *gin.Context) {
	result, err := h.milestoneService.ExecuteDisbursement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// GetDisbursement GET /api/v1/disbursements/:id
func (h *Handler) GetDisbursement(c *gin.Context) {
	result, err := h.milestoneService.GetDisbursement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 团队资金
// ============================================================

// DistributeTeamFund POST /api/v1/projects/:id/team-funds/distribute
// 调用方必须是该项目当前的人才组长
func (h *Handler) DistributeTeamFund(c *gin.Context) {
	var req service.DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.teamFundService.Distribute(c.Request.Context(), c.Param("id"), actorID(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ListProjectMilestones GET /api/v1/projects/:id/milestones
func (h *Handler) ListProjectMilestones(c *gin.Context) {
	milestones, err := h.milestoneService.ListProjectMilestones(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, milestones)
}

// GetTeamFund GET /api/v1/projects/:id/team-funds
func (h *Handler) GetTeamFund(c *gin.Context) {
	projectID := c.Param("id")

	holding, err := h.teamFundService.HoldingStatus(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	entries, err := h.teamFundService.ListEntries(c.Request.Context(), projectID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"holding": holding,
		"entries": entries,
	})
}

// ============================================================
// 提现
// ============================================================

// CreateWithdrawal POST /api/v1/withdrawals
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	w, err := h.withdrawalService.RequestWithdrawal(c.Request.Context(), actorID(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, w)
}

// CancelWithdrawal POST /api/v1/withdrawals/:id/cancel
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	w, err := h.withdrawalService.Cancel(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, w)
}

// ListWithdrawals GET /api/v1/withdrawals?status=PENDING&page=1&page_size=20
// 管理员按状态查询全部申请，普通用户只能看到自己的
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, pageSize := pageParams(c)

	var (
		list *service.WithdrawalListResponse
		err  error
	)
	if isAdmin(c) {
		list, err = h.withdrawalService.ListByStatus(c.Request.Context(), c.Query("status"), page, pageSize)
	} else {
		list, err = h.withdrawalService.ListByUser(c.Request.Context(), actorID(c), page, pageSize)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// GetWithdrawal GET /api/v1/withdrawals/:id
func (h *Handler) GetWithdrawal(c *gin.Context) {
	w, err := h.withdrawalService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !isAdmin(c) && w.UserID != actorID(c) {
		response.FromError(c, apperr.ErrNotWalletOwner)
		return
	}
	response.Success(c, w)
}

// ListWithdrawalTransactions GET /api/v1/withdrawals/:id/transactions
func (h *Handler) ListWithdrawalTransactions(c *gin.Context) {
	w, err := h.withdrawalService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !isAdmin(c) && w.UserID != actorID(c) {
		response.FromError(c, apperr.ErrNotWalletOwner)
		return
	}

	list, err := h.withdrawalService.ListTransactions(c.Request.Context(), w.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

type approveWithdrawalRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// ApproveWithdrawal POST /api/v1/withdrawals/:id/approve
// scheduled_at 为空时立即进入待打款
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	var req approveWithdrawalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "参数错误: "+err.Error())
			return
		}
	}

	w, err := h.withdrawalService.Approve(c.Request.Context(), c.Param("id"), actorID(c), req.ScheduledAt)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, w)
}

type rejectWithdrawalRequest struct {
	Note string `json:"note" binding:"required"`
}

// RejectWithdrawal POST /api/v1/withdrawals/:id/reject
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	var req rejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	w, err := h.withdrawalService.Reject(c.Request.Context(), c.Param("id"), actorID(c), req.Note)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, w)
}

// ProcessWithdrawal POST /api/v1/withdrawals/:id/process
// 管理员手动提交打款，不等调度任务
func (h *Handler) ProcessWithdrawal(c *gin.Context) {
	w, err := h.withdrawalService.MarkProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, w)
}

// PayoutCallback POST /api/v1/withdrawals/:id/payout-callback
// 打款渠道回调，重复回调返回原结果
func (h *Handler) PayoutCallback(c *gin.Context) {
	var req service.PayoutConfirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	w, replayed, err := h.withdrawalService.ConfirmPayout(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"withdrawal": w,
		"replayed":   replayed,
	})
}
