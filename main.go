package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"realtime-service/internal/auth"
	"realtime-service/internal/config"
	"realtime-service/internal/db"
	grpcserver "realtime-service/internal/grpc"
	"realtime-service/internal/handlers"
	"realtime-service/internal/kafka"
	"realtime-service/internal/logger"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/repositories/memory"
	"realtime-service/internal/services"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

type stores struct {
	friendships   repositories.FriendshipRepository
	rooms         repositories.ChatRepository
	messages      repositories.MessageRepository
	notifications repositories.NotificationRepository
	probe         grpcserver.Probe
	close         func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.ServiceName, cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	eventsPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.EventsExchange, log)
	defer eventsPublisher.Close()
	logsPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.LogsExchange, log)
	defer logsPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(logsPublisher, "audit."+cfg.ServiceName, cfg.ServiceName, cfg.Environment, log)

	var reporter *observability.Reporter
	if wsEvents, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange); err != nil {
		log.Info("ws lifecycle events disabled", zap.Error(err))
	} else {
		defer wsEvents.Close()
		reporter = observability.NewReporter(wsEvents)
	}

	hub := ws.NewHub()
	dispatcher := ws.NewDispatcher(hub, log)
	if relay := newRelay(ctx, cfg, log); relay != nil {
		dispatcher.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, dispatcher); err != nil {
				log.Error("relay stopped", zap.Error(err))
			}
		}()
	}

	notifications := services.NewNotificationService(st.notifications)
	notifier := services.NewNotifier(notifications, st.messages, dispatcher, eventsPublisher, log)
	friends := services.NewFriendshipService(st.friendships, notifier, eventsPublisher, log)
	conversations := services.NewConversationService(st.rooms, st.messages, friends, dispatcher, notifier, eventsPublisher, log)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewActivityConsumer(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaActivityTopic,
		}, notifier, log)
		if err != nil {
			log.Warn("activity consumer disabled", zap.Error(err))
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Error("activity consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	validator := auth.NewJWTValidator(cfg.JWTSecret)
	endpoint := ws.Endpoint{
		Hub:       hub,
		Validator: validator,
		Reporter:  reporter,
		Config: ws.SessionConfig{
			SendBuffer:    cfg.WSSendBuffer,
			RatePerSecond: cfg.WSRatePerSecond,
			RateBurst:     cfg.WSRateBurst,
			WriteTimeout:  cfg.WSWriteTimeout,
		},
		Logger: log,
	}

	friendsHandler := handlers.NewFriendsHandler(friends, auditEmitter, log)
	chatHandler := handlers.NewChatHandler(conversations, cfg.RecentMessagesLimit, log)
	notificationHandler := handlers.NewNotificationHandler(notifications, notifier, log)
	activityHandler := handlers.NewActivityHandler(notifier, log)
	chatWS := ws.NewChatWebSocketHandler(endpoint, conversations)
	notifyWS := ws.NewNotifyWebSocketHandler(endpoint, notifications)

	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", observability.MetricsHandler())

	api := router.Group("/", middleware.AuthMiddleware(validator))
	api.POST("/friends/requests", friendsHandler.SendRequest)
	api.GET("/friends/requests/incoming", friendsHandler.Incoming)
	api.GET("/friends/requests/outgoing", friendsHandler.Outgoing)
	api.POST("/friends/requests/:id/accept", friendsHandler.Accept)
	api.POST("/friends/requests/:id/reject", friendsHandler.Reject)
	api.GET("/friends", friendsHandler.ListFriends)
	api.DELETE("/friends/:user_id", friendsHandler.Remove)
	api.POST("/friends/:user_id/block", friendsHandler.Block)

	api.GET("/chats", chatHandler.ListChats)
	api.POST("/chats/start", chatHandler.StartChat)
	api.POST("/chats/share", chatHandler.ShareWithFriend)
	api.GET("/chats/unread", chatHandler.Unread)
	api.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
	api.POST("/chats/:chat_id/messages", chatHandler.PostChatMessage)
	api.POST("/chats/:chat_id/read", chatHandler.MarkRead)

	api.GET("/notifications", notificationHandler.List)
	api.GET("/notifications/unread", notificationHandler.Unread)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)
	api.POST("/notifications/read-all", notificationHandler.MarkAllRead)

	api.POST("/activity", activityHandler.Report)

	router.GET("/ws/chats/:chat_id", chatWS.Handle)
	router.GET("/ws/notifications", notifyWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, validator, hub, cfg.DebugRoutes)

	health := grpcserver.NewHealthServer(cfg.ServiceName, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			log.Error("grpc server error", zap.Error(err))
		}
	}()
	go health.Watch(ctx, st.probe, 15*time.Second)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		health.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	health.Stop()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return stores{
			friendships:   memory.NewFriendshipRepo(store),
			rooms:         memory.NewChatRepo(store),
			messages:      memory.NewMessageRepo(store),
			notifications: memory.NewNotificationRepo(store),
			probe:         func(context.Context) error { return nil },
			close:         func() error { return nil },
		}, nil
	}

	database, err := db.Connect(ctx, cfg.DBDSN, log)
	if err != nil {
		return stores{}, err
	}
	return postgresStores(database), nil
}

func postgresStores(database *sqlx.DB) stores {
	return stores{
		friendships:   repositories.NewFriendshipRepo(database),
		rooms:         repositories.NewChatRepo(database),
		messages:      repositories.NewMessageRepo(database),
		notifications: repositories.NewNotificationRepo(database),
		probe:         database.PingContext,
		close:         database.Close,
	}
}

// newRelay connects to Redis for cross-instance fan-out. It returns nil when
// the relay is not configured or Redis is unreachable.
func newRelay(ctx context.Context, cfg config.Config, log *zap.Logger) *ws.RedisRelay {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis relay disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return ws.NewRedisRelay(client, cfg.RedisChannel, log)
}
