package handler

import (
	"talentpay/internal/config"
	"talentpay/internal/infrastructure/lock"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, locker *lock.Locker, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, locker, cfg)
	admin := RequireRole(RoleAdmin)

	// API 路由组，全部要求网关传入调用方身份
	api := r.Group("/api/v1", ActorMiddleware())
	{
		// 分账配置
		feeConfigs := api.Group("/fee-configs", admin)
		{
			feeConfigs.GET("", h.ListFeeConfigs)
			feeConfigs.POST("", h.CreateFeeConfig)
			feeConfigs.PUT("/:id", h.UpdateFeeConfig)
			feeConfigs.POST("/:id/activate", h.ActivateFeeConfig)
		}

		// 钱包
		wallets := api.Group("/wallets")
		{
			wallets.GET("/:id/balance", h.GetWalletBalance)
			wallets.GET("/:id/transactions", h.ListWalletTransactions)
		}

		// 里程碑
		milestones := api.Group("/milestones")
		{
			milestones.POST("", h.RegisterMilestone)
			milestones.GET("/:id", h.GetMilestone)
			milestones.POST("/:id/deposit", RequireRole(RoleCompany, RoleAdmin), h.Deposit)
			milestones.GET("/:id/disbursement/preview", h.PreviewDisbursement)
			milestones.POST("/:id/disbursement", h.CalculateDisbursement)
			milestones.GET("/:id/disbursements", h.ListDisbursements)
		}

		// 发放单
		disbursements := api.Group("/disbursements")
		{
			disbursements.POST("/:id/execute", admin, h.ExecuteDisbursement)
			disbursements.GET("/:id", h.GetDisbursement)
		}

		// 团队资金
		projects := api.Group("/projects")
		{
			projects.POST("/:id/team-funds/distribute", h.DistributeTeamFund)
			projects.GET("/:id/team-funds", h.GetTeamFund)
			projects.GET("/:id/milestones", h.ListProjectMilestones)
		}

		// 提现
		withdrawals := api.Group("/withdrawals")
		{
			withdrawals.POST("", h.CreateWithdrawal)
			withdrawals.GET("", h.ListWithdrawals)
			withdrawals.GET("/:id", h.GetWithdrawal)
			withdrawals.GET("/:id/transactions", h.ListWithdrawalTransactions)
			withdrawals.POST("/:id/cancel", h.CancelWithdrawal)
			withdrawals.POST("/:id/approve", admin, h.ApproveWithdrawal)
			withdrawals.POST("/:id/reject", admin, h.RejectWithdrawal)
			withdrawals.POST("/:id/process", admin, h.ProcessWithdrawal)
			withdrawals.POST("/:id/payout-callback", RequireRole(RolePayout, RoleAdmin), h.PayoutCallback)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
