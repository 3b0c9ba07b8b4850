/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、契约加载、查询事件旁路与各业务服务的装配
 * @architecture 分层架构 - 服务层
 * @stateFlow 加载契约 -> 建立连接(失败时关闭建表同步重试一次) -> 系统表迁移 -> 实体注册 -> 事件旁路 -> 仓储与门面 -> 迁移服务 -> 清理任务
 * @rules 确保所有依赖服务正常启动后才提供API服务；可选组件(Redis/Kafka/MQTT)初始化失败只告警不阻断启动
 * @dependencies contractstore-service/service/repository, contractstore-service/service/migration, github.com/prometheus/client_golang
 * @refs service/config/config.go
 */

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"contractstore-service/client/connectors"
	"contractstore-service/service/audit"
	"contractstore-service/service/cleanup"
	"contractstore-service/service/config"
	"contractstore-service/service/contract"
	"contractstore-service/service/database"
	"contractstore-service/service/distributed_lock"
	"contractstore-service/service/migration"
	"contractstore-service/service/repository"
	"contractstore-service/service/schema"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm/logger"
)

// Services 装配完成的服务集合
type Services struct {
	Config     *config.Config
	Driver     repository.Driver
	Contracts  *contract.Registry
	Entities   *repository.EntityRegistry
	Repository *repository.Repository
	Resolvers  *schema.ResolverRegistry
	Facades    map[string]*schema.Facade
	Migrations *migration.Service
	Cleanup    *cleanup.LogCleanupService

	lock    *distributed_lock.RedisLock
	async   *audit.AsyncSink
	kafka   *connectors.KafkaConnector
	mqtt    *connectors.MQTTConnector
	started time.Time
}

// GlobalServices 进程内唯一的服务集合，由 main 在启动时初始化
var GlobalServices *Services

// Options 初始化选项
type Options struct {
	Registerer prometheus.Registerer // 为空时使用默认注册表
}

// Initialize 按配置装配全部服务
func Initialize(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	s := &Services{
		Config:  cfg,
		Facades: make(map[string]*schema.Facade),
		started: time.Now(),
	}

	if err := s.initContracts(); err != nil {
		return nil, err
	}
	if err := s.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := s.initRepository(ctx, opts.Registerer); err != nil {
		s.Close(ctx)
		return nil, err
	}
	if err := s.initResolvers(); err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.initFacades()
	s.initMigrations()
	s.initCleanup()

	slog.Info("服务初始化完成",
		"dialect", cfg.Dialect(),
		"contracts", len(s.Contracts.Names()),
		"entities", len(s.Entities.Entities()))
	return s, nil
}

// initContracts 加载契约快照，契约目录不存在时使用空注册表
func (s *Services) initContracts() error {
	dir := s.Config.Migration.ContractsDir
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Warn("契约目录不存在，使用空契约注册表", "dir", dir)
		s.Contracts = contract.NewRegistry()
		return s.Contracts.Load()
	}

	registry, err := contract.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("加载契约失败: %w", err)
	}
	s.Contracts = registry
	slog.Info("契约加载完成", "dir", dir, "count", len(registry.Names()))
	return nil
}

// initDatabase 建立连接，首次失败时关闭建表同步重试一次
func (s *Services) initDatabase(ctx context.Context) error {
	schemaSync := s.Config.Database.SchemaSync
	err := s.connect(ctx, schemaSync)
	if err == nil {
		return nil
	}

	slog.Warn("数据库初始化失败，关闭建表同步后重试", "error", err)
	if s.Driver != nil {
		_ = s.Driver.Close(ctx)
		s.Driver = nil
	}
	if retryErr := s.connect(ctx, false); retryErr != nil {
		return retryErr
	}
	return nil
}

func (s *Services) connect(ctx context.Context, schemaSync bool) error {
	cfg := s.Config
	level := logger.Warn
	if cfg.App.Debug {
		level = logger.Info
	}

	driver, err := repository.Open(ctx, repository.ConnectionOptions{
		Dialect:         cfg.Dialect(),
		DSN:             cfg.DSN(),
		Database:        cfg.DatabaseName(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        level,
	})
	if err != nil {
		return err
	}
	s.Driver = driver

	// 系统表只存在于关系型方言
	if rel, ok := driver.(*repository.RelationalDriver); ok {
		if err := database.AutoMigrate(rel.DB()); err != nil {
			return fmt.Errorf("系统表迁移失败: %w", err)
		}
	}

	if schemaSync {
		if err := s.syncContractTables(ctx); err != nil {
			return err
		}
	}
	return nil
}

// syncContractTables 为尚不存在的契约表建表
func (s *Services) syncContractTables(ctx context.Context) error {
	tables, err := s.Driver.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("获取表列表失败: %w", err)
	}
	existing := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		existing[t] = struct{}{}
	}

	admin := repository.NewRepository(s.Driver, repository.NewEntityRegistry(), repository.Options{})
	for _, c := range s.Contracts.All() {
		table := database.TableNameFor(c)
		if _, ok := existing[table]; ok {
			continue
		}
		if err := admin.CreateTable(ctx, c); err != nil {
			return fmt.Errorf("创建契约表 %s 失败: %w", table, err)
		}
		slog.Info("契约表已创建", "contract", c.ContractName, "table", table)
	}
	return nil
}

// initRepository 注册实体并装配查询事件旁路
func (s *Services) initRepository(ctx context.Context, reg prometheus.Registerer) error {
	tables, err := s.Driver.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("获取表列表失败: %w", err)
	}
	s.Entities = repository.NewEntityRegistry()
	if err := s.Entities.Load(tables, s.Contracts.All()); err != nil {
		return fmt.Errorf("实体注册失败: %w", err)
	}

	sink, err := s.buildSink(reg)
	if err != nil {
		return err
	}
	s.Repository = repository.NewRepository(s.Driver, s.Entities, repository.Options{
		Debug: s.Config.App.Debug,
		Sink:  sink,
	})
	return nil
}

// buildSink 同步部分(日志、指标)直接执行，落库与消息发布经异步缓冲
func (s *Services) buildSink(reg prometheus.Registerer) (audit.Sink, error) {
	metrics, err := audit.NewMetricsSink(reg)
	if err != nil {
		return nil, fmt.Errorf("注册查询指标失败: %w", err)
	}
	sinks := audit.MultiSink{audit.LogSink{}, metrics}

	var background audit.MultiSink
	if rel, ok := s.Driver.(*repository.RelationalDriver); ok && s.Config.Audit.Store {
		background = append(background, audit.NewStoreSink(rel.DB()))
	}

	if s.Config.Kafka.Enabled() {
		kc, err := connectors.NewKafkaConnector(&connectors.KafkaConfig{
			Brokers: s.Config.Kafka.Brokers,
			Topic:   s.Config.Kafka.Topic,
		})
		if err != nil {
			slog.Warn("Kafka查询事件输出初始化失败", "error", err)
		} else {
			s.kafka = kc
			background = append(background, audit.NewKafkaSink(kc))
		}
	}

	if s.Config.MQTT.Enabled() {
		clientID := s.Config.MQTT.ClientID
		if clientID == "" {
			clientID = fmt.Sprintf("%s-%d", s.Config.App.Name, os.Getpid())
		}
		mc := connectors.NewMQTTConnector(&connectors.MQTTConfig{
			Broker:   s.Config.MQTT.Broker,
			ClientID: clientID,
			Username: s.Config.MQTT.Username,
			Password: s.Config.MQTT.Password,
			Topic:    s.Config.MQTT.Topic,
			QoS:      s.Config.MQTT.QoS,
		})
		if err := mc.Connect(); err != nil {
			slog.Warn("MQTT查询事件输出初始化失败", "error", err)
		} else {
			s.mqtt = mc
			background = append(background, audit.NewMQTTSink(mc))
		}
	}

	if len(background) > 0 {
		s.async = audit.NewAsyncSink(background, s.Config.Audit.BufferSize)
		sinks = append(sinks, s.async)
	}
	return sinks, nil
}

func (s *Services) initResolvers() error {
	s.Resolvers = schema.NewResolverRegistry()
	if len(s.Config.Resolvers) == 0 {
		return nil
	}
	if err := s.Resolvers.RegisterScripts(schema.NewScriptCompiler(), s.Config.Resolvers); err != nil {
		return fmt.Errorf("解析器脚本编译失败: %w", err)
	}
	slog.Info("解析器注册完成", "resolvers", s.Resolvers.Names())
	return nil
}

// initFacades 为每个表已存在的契约创建门面
func (s *Services) initFacades() {
	for _, c := range s.Contracts.All() {
		f := schema.NewContractFacade(s.Repository, c, s.Resolvers)
		shape, err := s.Entities.Lookup(f.Entity())
		if err != nil || !shape.Present {
			slog.Warn("契约对应的表不存在，跳过门面创建", "contract", c.ContractName)
			continue
		}
		s.Facades[f.Entity()] = f
	}
}

// initMigrations 迁移服务，配置了Redis时写入迁移文件需要先获取分布式锁
func (s *Services) initMigrations() {
	var lock distributed_lock.DistributedLock
	if s.Config.Redis.Enabled() {
		rl, err := distributed_lock.NewRedisLock(distributed_lock.Options{
			Host:     s.Config.Redis.Host,
			Port:     s.Config.Redis.Port,
			Password: s.Config.Redis.Password,
			DB:       s.Config.Redis.DB,
		})
		if err != nil {
			slog.Warn("Redis分布式锁初始化失败，迁移写入不加锁", "error", err)
		} else {
			s.lock = rl
			lock = rl
		}
	}

	dialect := s.Config.Dialect()
	writer := migration.NewWriter(s.Config.Migration.Dir, dialect, lock)
	s.Migrations = migration.NewService(migration.NewGenerator(dialect), writer)
}

// initCleanup 审计日志按保留期定时清理，仅在落库时启用
func (s *Services) initCleanup() {
	rel, ok := s.Driver.(*repository.RelationalDriver)
	if !ok || !s.Config.Audit.Store {
		return
	}

	opts := cleanup.Options{
		RetentionDays: s.Config.Audit.RetentionDays,
		Schedule:      s.Config.Audit.CleanupCron,
	}
	if s.lock != nil {
		opts.Lock = distributed_lock.NewLockExecutor(s.lock)
	}
	s.Cleanup = cleanup.NewLogCleanupService(audit.NewStoreSink(rel.DB()), opts)
	if err := s.Cleanup.StartScheduledCleanup(); err != nil {
		slog.Warn("启动审计日志清理任务失败", "error", err)
	}
}

// Facade 按实体名获取门面
func (s *Services) Facade(entity string) (*schema.Facade, bool) {
	f, ok := s.Facades[entity]
	return f, ok
}

// Uptime 运行时长
func (s *Services) Uptime() time.Duration {
	return time.Since(s.started)
}

// Close 按装配的逆序释放资源
func (s *Services) Close(ctx context.Context) {
	if s.Cleanup != nil {
		s.Cleanup.StopScheduledCleanup()
	}
	if s.async != nil {
		s.async.Close()
	}
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			slog.Warn("关闭Kafka连接失败", "error", err)
		}
	}
	if s.mqtt != nil {
		stats := s.mqtt.GetStatistics()
		slog.Info("关闭MQTT连接", "messages_sent", stats.MessagesSent, "reconnects", stats.ReconnectCount, "last_error", stats.LastError)
		s.mqtt.Disconnect()
	}
	if s.lock != nil {
		_ = s.lock.Close()
	}
	if s.Driver != nil {
		if err := s.Driver.Close(ctx); err != nil {
			slog.Warn("关闭数据库连接失败", "error", err)
		}
	}
}
