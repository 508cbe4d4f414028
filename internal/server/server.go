package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/directory"
	directorydomain "github.com/smallbiznis/royalti/internal/directory/domain"
	"github.com/smallbiznis/royalti/internal/ledger"
	ledgerdomain "github.com/smallbiznis/royalti/internal/ledger/domain"
	"github.com/smallbiznis/royalti/internal/observability"
	obsmiddleware "github.com/smallbiznis/royalti/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/royalti/internal/observability/metrics"
	obstracing "github.com/smallbiznis/royalti/internal/observability/tracing"
	"github.com/smallbiznis/royalti/internal/payout"
	payoutdomain "github.com/smallbiznis/royalti/internal/payout/domain"
	"github.com/smallbiznis/royalti/internal/period"
	perioddomain "github.com/smallbiznis/royalti/internal/period/domain"
	"github.com/smallbiznis/royalti/internal/record"
	"github.com/smallbiznis/royalti/internal/report"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/wallet"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	directory.Module,
	period.Module,
	record.Module,
	report.Module,
	ledger.Module,
	wallet.Module,
	payout.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// maxUploadMemory bounds the multipart form kept in memory; larger parts
// spill to temporary files.
const maxUploadMemory = 32 << 20

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadMemory
	r.Use(gin.Recovery())
	r.Use(CORS(cfg.IsProduction(), cfg.CORSAllowedOrigins))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ActorContext())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	periodSvc    perioddomain.Service
	reportSvc    reportdomain.Service
	walletSvc    walletdomain.Service
	ledgerSvc    ledgerdomain.Service
	payoutSvc    payoutdomain.Service
	directorySvc directorydomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	PeriodSvc    perioddomain.Service
	ReportSvc    reportdomain.Service
	WalletSvc    walletdomain.Service
	LedgerSvc    ledgerdomain.Service
	PayoutSvc    payoutdomain.Service
	DirectorySvc directorydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		periodSvc:    p.PeriodSvc,
		reportSvc:    p.ReportSvc,
		walletSvc:    p.WalletSvc,
		ledgerSvc:    p.LedgerSvc,
		payoutSvc:    p.PayoutSvc,
		directorySvc: p.DirectorySvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	api.POST("/periods", s.CreatePeriod)
	api.GET("/periods", s.ListPeriods)
	api.GET("/periods/:id", s.GetPeriodByID)
	api.PATCH("/periods/:id/deactivate", s.DeactivatePeriod)

	api.POST("/reports", s.UploadReport)
	api.GET("/reports", s.ListReports)
	api.GET("/reports/:id", s.GetReportByID)
	api.GET("/reports/:id/errors", s.ListReportRowErrors)
	api.POST("/reports/:id/retry", s.RetryReport)
	api.DELETE("/reports/:id", s.DeleteReport)

	api.GET("/wallets/:userId", s.GetWallet)
	api.GET("/wallets/:userId/adjustments", s.ListWalletAdjustments)
	api.POST("/wallets/:userId/adjustments", s.CreateWalletAdjustment)
	api.GET("/wallets/:userId/entries", s.ListWalletEntries)

	api.POST("/payouts", s.CreatePayout)
	api.GET("/payouts", s.ListPayouts)
	api.GET("/payouts/:id", s.GetPayoutByID)
	api.POST("/payouts/:id/approve", s.ApprovePayout)
	api.POST("/payouts/:id/reject", s.RejectPayout)
	api.POST("/payouts/:id/pay", s.MarkPayoutPaid)
	api.POST("/payouts/:id/cancel", s.CancelPayout)
	api.GET("/payouts/:id/remittance", s.GetPayoutRemittance)

	api.PUT("/accounts/:accountId/owner", s.SetAccountOwner)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
