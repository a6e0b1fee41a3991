package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treehub/internal/config"
	"treehub/internal/events"
	"treehub/internal/handler"
	"treehub/internal/middleware"
	"treehub/internal/model"
	"treehub/internal/repository"
	"treehub/internal/search"
	"treehub/internal/service"
	"treehub/pkg/database"
	"treehub/pkg/log"
	"treehub/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Init("configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	log.Info("Server starting")

	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.RunMigrate(); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)

	// 仓库层
	userRepo := repository.NewUserRepository(database.DB)
	nodeRepo := repository.NewNodeRepository(database.DB)
	changeRepo := repository.NewChangeRecordRepository(database.DB)
	eventRepo := repository.NewEventLogRepository(database.DB)
	localeRepo := repository.NewLocaleRepository(database.DB)

	// 事件推送与搜索索引（旁路消费者）
	hub := events.NewHub()
	eventService := service.NewEventService(eventRepo, hub)

	var indexer *search.Indexer
	if cfg.Search.Enabled {
		var err error
		indexer, err = search.NewIndexer(cfg.Search.Addresses, cfg.Search.Index)
		if err != nil {
			// 搜索是旁路能力，初始化失败降级运行
			log.Error("Failed to init search indexer, search disabled", err)
			indexer = nil
		}
	}

	// 节点写操作通过 After 钩子串出集成事件和索引更新
	hooks := service.NodeHooks{
		AfterCreate: func(node *model.OrgNode) {
			publishNodeEvent(eventService, node.TenantID, "org_node.created", node)
			if indexer != nil {
				indexer.IndexNodeAsync(node)
			}
		},
		AfterUpdate: func(node *model.OrgNode) {
			publishNodeEvent(eventService, node.TenantID, "org_node.updated", node)
			if indexer != nil {
				indexer.IndexNodeAsync(node)
			}
		},
		AfterDelete: func(tenantID string, ids []string) {
			publishNodeEvent(eventService, tenantID, "org_node.deleted", gin.H{"ids": ids})
			if indexer != nil {
				indexer.DeleteNodesAsync(tenantID, ids)
			}
		},
		AfterToggle: func(tenantID string, ids []string, enabled bool) {
			publishNodeEvent(eventService, tenantID, "org_node.toggled", gin.H{"ids": ids, "enabled": enabled})
		},
	}

	// 服务层
	userService := service.NewUserService(userRepo, jwtManager, database.RDB)
	nodeService := service.NewNodeService(nodeRepo, changeRepo, hooks)
	localeService := service.NewLocaleService(localeRepo, database.RDB, cfg.Locale.DefaultCulture,
		time.Duration(cfg.Locale.CacheTTLSeconds)*time.Second)

	// Handler 层
	userHandler := handler.NewUserHandler(userService, jwtManager)
	nodeHandler := handler.NewNodeHandler(nodeService, indexer)
	eventHandler := handler.NewEventHandler(eventService, hub)
	localeHandler := handler.NewLocaleHandler(localeService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.TenantResolver(cfg.Tenant.Default),
		middleware.CultureResolver(cfg.Locale.DefaultCulture),
		middleware.RequestLogger(),
		gin.Recovery(),
	)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
		auth.POST("/refresh", userHandler.Refresh)
		auth.POST("/logout", middleware.AuthMiddleware(jwtManager, userService), userHandler.Logout)
	}

	api := r.Group("/api", middleware.AuthMiddleware(jwtManager, userService))
	{
		api.GET("/users/me", userHandler.GetProfile)

		api.GET("/nodes", nodeHandler.List)
		api.GET("/nodes/tree", nodeHandler.GetTree)
		api.GET("/nodes/search", nodeHandler.Search)
		api.GET("/nodes/:id", nodeHandler.Get)
		api.GET("/nodes/:id/subtree", nodeHandler.GetSubtree)
		api.GET("/nodes/:id/changes", nodeHandler.GetChanges)

		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.Get)

		api.GET("/locales", localeHandler.GetStrings)

		// 写操作仅管理员可用
		admin := api.Group("", middleware.AdminAuthMiddleware())
		{
			admin.POST("/nodes", nodeHandler.Create)
			admin.PUT("/nodes/enable", nodeHandler.Enable)
			admin.PUT("/nodes/disable", nodeHandler.Disable)
			admin.PUT("/nodes/:id", nodeHandler.Update)
			admin.PUT("/nodes/:id/parent", nodeHandler.Move)
			admin.DELETE("/nodes", nodeHandler.Delete)

			admin.PUT("/events/:id/processing", eventHandler.MarkProcessing)
			admin.PUT("/events/:id/success", eventHandler.MarkSuccess)
			admin.PUT("/events/:id/fail", eventHandler.MarkFail)

			admin.PUT("/locales", localeHandler.Upsert)
		}
	}

	r.GET("/ws/events", middleware.AuthMiddleware(jwtManager, userService), eventHandler.Subscribe)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// publishNodeEvent 发布节点变更事件。事件是旁路数据，失败只告警。
func publishNodeEvent(eventService service.EventService, tenantID, eventType string, payload interface{}) {
	if _, err := eventService.Publish(tenantID, eventType, payload); err != nil {
		log.Warnf("failed to publish %s event: %v", eventType, err)
	}
}
