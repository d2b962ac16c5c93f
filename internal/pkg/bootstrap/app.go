// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/mq"
	"eshop/internal/pkg/nacos"
	"eshop/internal/pkg/tracing"
	"eshop/internal/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// AppCtx 注册路由和后台任务时可用的组件
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
	*lifecycle
}

// lifecycle 管理后台任务(消费者、outbox relay 等)与关停钩子
type lifecycle struct {
	ctx      context.Context
	group    *errgroup.Group
	mu       sync.Mutex
	cleanups []func(ctx context.Context)
}

// Go 启动一个后台任务，服务关停时 ctx 会被取消
func (l *lifecycle) Go(name string, fn func(ctx context.Context) error) {
	l.group.Go(func() error {
		logger.Get().Info().Str("worker", name).Msg("background worker started")
		err := fn(l.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Get().Error().Err(err).Str("worker", name).Msg("background worker exited")
			return err
		}
		return nil
	})
}

// OnShutdown 注册关停时执行的清理函数，后注册的先执行
func (l *lifecycle) OnShutdown(fn func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanups = append(l.cleanups, fn)
}

// Consume 为 topic 启动一个消费者，同时启动它的死信日志消费者
func (a AppCtx) Consume(topic, groupID string, handle mq.HandlerFunc, failure *mq.FailureHandler) {
	brokers := GetCurrentConfig().Infra.Kafka.Brokers
	reader := mq.NewKafkaReader(brokers, topic, groupID)
	consumer := mq.NewConsumer(topic, reader, handle, failure)
	a.Go("consumer-"+topic, func(ctx context.Context) error {
		consumer.Run(ctx)
		return nil
	})
	a.OnShutdown(func(ctx context.Context) { _ = reader.Close() })

	dltReader := mq.NewKafkaReader(brokers, mq.DeadLetterTopic(topic), groupID+"-dlt")
	dlt := mq.NewDltConsumer(dltReader)
	a.Go("dlt-"+topic, func(ctx context.Context) error {
		dlt.Run(ctx)
		return nil
	})
	a.OnShutdown(func(ctx context.Context) { _ = dltReader.Close() })
}

func (l *lifecycle) runCleanups(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.cleanups) - 1; i >= 0; i-- {
		l.cleanups[i](ctx)
	}
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 注册 HTTP 路由与后台任务
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	log := logger.Get()

	nacosServerAddrs := getEnv("NACOS_SERVER_ADDRS", "localhost:8848")
	nacosNamespace := getEnv("NACOS_NAMESPACE", "")
	nacosGroup := getEnv("NACOS_GROUP", "DEFAULT_GROUP")

	serverConfigs, err := createNacosServerConfigs(nacosServerAddrs)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid nacos server address format")
	}
	clientConfig := createNacosClientConfig(nacosNamespace)

	tp, err := tracing.InitTracerProvider(info.ServiceName, GetCurrentConfig().Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	namingClient, err := nacos.NewNacosClientWithConfigs(serverConfigs, &clientConfig, nacosGroup)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := utils.GetOutboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get outbound IP address")
	}

	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	runCtx, stopWorkers := context.WithCancel(logger.WithContext(context.Background()))
	group, groupCtx := errgroup.WithContext(runCtx)
	lc := &lifecycle{ctx: groupCtx, group: group}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient, lifecycle: lc})
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 收到退出信号，或者某个后台任务异常退出
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down service")
	case <-groupCtx.Done():
		log.Error().Msg("background worker failed, shutting down service")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先从注册中心摘除，不再接收新流量
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Error().Err(err).Msg("error deregistering from nacos")
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}

	stopWorkers()
	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("background worker stopped with error")
	}
	lc.runCleanups(ctx)

	if nacosConfigClient != nil {
		nacosConfigClient.CloseClient()
	}
	namingClient.Close()

	// 最后关闭 Tracer Provider，确保关停过程中的 span 也被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}

	log.Info().Str("service", info.ServiceName).Msg("service gracefully shut down")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
