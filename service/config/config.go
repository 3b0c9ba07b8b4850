/*
 * @module service/config/config
 * @description 应用配置加载，负责配置文件解析、环境变量覆盖与配置校验
 * @architecture 分层架构 - 基础设施层
 * @stateFlow 默认配置 -> YAML 文件(可选) -> 环境变量覆盖 -> 校验
 * @rules 环境变量优先级最高；方言必须是 postgres/mysql/sqlite/mongodb 之一
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs service/init.go
 */

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"contractstore-service/service/database"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App       AppConfig         `yaml:"app"`
	Server    ServerConfig      `yaml:"server"`
	Database  DatabaseConfig    `yaml:"database"`
	Redis     RedisConfig       `yaml:"redis"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	MQTT      MQTTConfig        `yaml:"mqtt"`
	Migration MigrationConfig   `yaml:"migration"`
	Audit     AuditConfig       `yaml:"audit"`
	Logging   LoggingConfig     `yaml:"logging"`
	Resolvers map[string]string `yaml:"resolvers"` // 名称 -> 脚本
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Debug   bool   `yaml:"debug"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int      `yaml:"port"`
	BaseContext string   `yaml:"base_context"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Dialect         string        `yaml:"dialect"`
	URL             string        `yaml:"url"` // 设置时优先于分离的连接参数
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	Schema          string        `yaml:"schema"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MongoURI        string        `yaml:"mongo_uri"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SchemaSync      bool          `yaml:"schema_sync"` // 启动时按契约建表
}

// RedisConfig Redis配置，Host 为空时不启用分布式锁
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled 是否启用
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig 查询事件 Kafka 输出
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled 是否启用
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// MQTTConfig 查询事件 MQTT 输出
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// Enabled 是否启用
func (c MQTTConfig) Enabled() bool {
	return c.Broker != "" && c.Topic != ""
}

// MigrationConfig 迁移配置
type MigrationConfig struct {
	Dir          string `yaml:"dir"`
	ContractsDir string `yaml:"contracts_dir"`
}

// AuditConfig 查询审计配置
type AuditConfig struct {
	Store         bool   `yaml:"store"` // 是否写入 audit_logs 表
	BufferSize    int    `yaml:"buffer_size"`
	RetentionDays int    `yaml:"retention_days"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "contractstore-service",
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Port:        80,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Dialect:      string(database.DialectPostgres),
			Host:         "localhost",
			Port:         5432,
			Name:         "postgres",
			User:         "postgres",
			SSLMode:      "disable",
			Schema:       "public",
			SQLitePath:   "contractstore.db",
			MongoURI:     "mongodb://localhost:27017",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Port: 6379,
		},
		Migration: MigrationConfig{
			Dir:          "migrations",
			ContractsDir: "contracts",
		},
		Audit: AuditConfig{
			Store:         true,
			BufferSize:    1024,
			RetentionDays: 30,
			CleanupCron:   "0 0 2 * * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load 加载配置，path 为空或文件不存在时只使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides 应用环境变量覆盖
func (c *Config) applyEnvironmentOverrides() error {
	var err error
	intEnv := func(key string, current int) int {
		raw := getEnvWithDefault(key, "")
		if raw == "" || err != nil {
			return current
		}
		n, convErr := cast.ToIntE(raw)
		if convErr != nil {
			err = fmt.Errorf("环境变量 %s 不是有效整数: %s", key, raw)
			return current
		}
		return n
	}

	c.Database.Dialect = getEnvWithDefault("DB_DIALECT", c.Database.Dialect)
	c.Database.URL = getEnvWithDefault("DATABASE_URL", c.Database.URL)
	c.Database.Host = getEnvWithDefault("DB_HOST", c.Database.Host)
	c.Database.Port = intEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnvWithDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvWithDefault("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnvWithDefault("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnvWithDefault("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Schema = getEnvWithDefault("DB_SCHEMA", c.Database.Schema)
	c.Database.SQLitePath = getEnvWithDefault("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.MongoURI = getEnvWithDefault("MONGO_URI", c.Database.MongoURI)
	if v := getEnvWithDefault("DB_SCHEMA_SYNC", ""); v != "" {
		c.Database.SchemaSync = cast.ToBool(v)
	}

	c.Redis.Host = getEnvWithDefault("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = intEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnvWithDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = intEnv("REDIS_DB", c.Redis.DB)

	if v := getEnvWithDefault("KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getEnvWithDefault("KAFKA_TOPIC", c.Kafka.Topic)

	c.MQTT.Broker = getEnvWithDefault("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Topic = getEnvWithDefault("MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.Username = getEnvWithDefault("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnvWithDefault("MQTT_PASSWORD", c.MQTT.Password)

	c.Migration.Dir = getEnvWithDefault("MIGRATIONS_DIR", c.Migration.Dir)
	c.Migration.ContractsDir = getEnvWithDefault("CONTRACTS_DIR", c.Migration.ContractsDir)

	c.Audit.RetentionDays = intEnv("AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.CleanupCron = getEnvWithDefault("AUDIT_CLEANUP_CRON", c.Audit.CleanupCron)

	c.Logging.Level = getEnvWithDefault("LOG_LEVEL", c.Logging.Level)
	if v := getEnvWithDefault("DEBUG", ""); v != "" {
		c.App.Debug = cast.ToBool(v)
	}

	c.Server.Port = intEnv("LISTEN_PORT", c.Server.Port)
	c.Server.BaseContext = getEnvWithDefault("BASE_CONTEXT", c.Server.BaseContext)

	return err
}

// Validate 校验配置
func (c *Config) Validate() error {
	if _, err := database.ParseDialect(c.Database.Dialect); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("无效的监听端口: %d", c.Server.Port)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("审计日志保留天数不能为负数: %d", c.Audit.RetentionDays)
	}
	if c.Migration.Dir == "" {
		return fmt.Errorf("迁移目录不能为空")
	}
	return nil
}

// Dialect 已校验的方言
func (c *Config) Dialect() database.Dialect {
	d, _ := database.ParseDialect(c.Database.Dialect)
	return d
}

// DSN 按方言构建连接串，文档型返回 URI
func (c *Config) DSN() string {
	db := c.Database
	switch c.Dialect() {
	case database.DialectMongoDB:
		return db.MongoURI
	case database.DialectSQLite:
		return db.SQLitePath
	}

	if db.URL != "" {
		return db.URL
	}

	switch c.Dialect() {
	case database.DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			db.User, db.Password, db.Host, db.Port, db.Name)
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode, db.Schema)
	}
}

// DatabaseName 文档型数据库名，未单独配置时取 URI 路径
func (c *Config) DatabaseName() string {
	if c.Dialect() != database.DialectMongoDB {
		return c.Database.Name
	}
	if u, err := url.Parse(c.Database.MongoURI); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return c.Database.Name
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
