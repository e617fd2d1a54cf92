package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hr-access/backend/config"
	"hr-access/backend/internal/api/handler"
	"hr-access/backend/internal/api/router"
	"hr-access/backend/internal/repository"
	"hr-access/backend/internal/scheduler"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/database"
	"hr-access/backend/pkg/jwt"
	applogger "hr-access/backend/pkg/logger"
	"hr-access/backend/pkg/redis"
	"hr-access/backend/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("HRA_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Attendance.Timezone),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}
	logger.Info("数据库就绪")

	// 4. 连接 Redis（可选：失败时限流放行、任务锁退化为单实例）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，限流与分布式任务锁不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 文件存储
	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal("初始化文件存储失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Scheduler → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, store, logger)

	sched, err := newScheduler(cfg, svc, rdb, logger)
	if err != nil {
		logger.Fatal("初始化定时任务失败", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
		logger.Info("定时任务已启动", zap.Strings("jobs", sched.Jobs()))
	}

	jwtMgr := jwt.NewManager(&cfg.Auth)
	h := handler.NewHandler(svc, sched, cfg.Server.MaxBodyBytes, logger.Named("http"))

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, svc.DeviceSync, rdb, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 手动触发任务为同步执行
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	sched.Stop(shutdownCtx)

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// newScheduler 注册三个定时任务；spec 为空的任务只能手动触发
func newScheduler(cfg *config.Config, svc *service.Service, rdb *redis.Client, logger *zap.Logger) (*scheduler.Scheduler, error) {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}

	opts := []scheduler.Option{}
	if rdb != nil {
		opts = append(opts, scheduler.WithLocker(rdb, cfg.Scheduler.LockTTL))
	}
	sched := scheduler.New(loc, logger.Named("scheduler"), opts...)

	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Scheduler.DayCloseSpec, scheduler.DayCloseJob(svc.DayCloser)},
		{cfg.Scheduler.SweepSpec, scheduler.EnrollmentSweepJob(svc.Enrollment)},
		{cfg.Scheduler.CalendarSpec, scheduler.CalendarRefreshJob(svc.Calendar)},
	}
	for _, j := range jobs {
		if err := sched.Register(j.spec, j.job); err != nil {
			return nil, fmt.Errorf("注册任务 %s 失败: %w", j.job.Name(), err)
		}
	}
	return sched, nil
}
