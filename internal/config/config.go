package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the risk engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration for the velocity cache
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BucketTTL    time.Duration `mapstructure:"bucket_ttl"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	AlertsTopic      string   `mapstructure:"alerts_topic"`
	ActionsTopic     string   `mapstructure:"actions_topic"`
	AuditTopic       string   `mapstructure:"audit_topic"`
}

// EngineConfig holds pipeline-level configuration
type EngineConfig struct {
	DetectorTimeout   time.Duration `mapstructure:"detector_timeout"`
	MaxEvalLatency    time.Duration `mapstructure:"max_eval_latency"`
	ErrorContribution float64       `mapstructure:"error_contribution"`

	// Decision thresholds, ordered highest first
	BlockThreshold   float64 `mapstructure:"block_threshold"`
	HoldThreshold    float64 `mapstructure:"hold_threshold"`
	MonitorThreshold float64 `mapstructure:"monitor_threshold"`
	LogThreshold     float64 `mapstructure:"log_threshold"`
}

// DetectorsConfig carries the tuned heuristic constants for every
// detector. All values can be overridden through configuration.
type DetectorsConfig struct {
	// Statistical anomaly
	BaselineWindowDays int     `mapstructure:"baseline_window_days"`
	MinHistory         int     `mapstructure:"min_history"`
	AmountZScore       float64 `mapstructure:"amount_z_score"`
	AmountScoreCap     float64 `mapstructure:"amount_score_cap"`
	HourDeviation      float64 `mapstructure:"hour_deviation"`
	TimeAnomalyScore   float64 `mapstructure:"time_anomaly_score"`
	RareCategoryShare  float64 `mapstructure:"rare_category_share"`
	RareCategoryMinTx  int     `mapstructure:"rare_category_min_tx"`
	CategoryScore      float64 `mapstructure:"category_score"`

	// Behavioral deviation
	SpendingDeviation   float64 `mapstructure:"spending_deviation"`
	SpendingScoreCap    float64 `mapstructure:"spending_score_cap"`
	HourChangeScore     float64 `mapstructure:"hour_change_score"`
	CategoryChangeScore float64 `mapstructure:"category_change_score"`
	TravelSpeedMph      float64 `mapstructure:"travel_speed_mph"`
	TakeoverScore       float64 `mapstructure:"takeover_score"`
	DiversificationTxns int     `mapstructure:"diversification_txns"`
	DiversificationCats int     `mapstructure:"diversification_cats"`
	CashOutMaxCount     int     `mapstructure:"cash_out_max_count"`
	CashOutMaxVolume    float64 `mapstructure:"cash_out_max_volume"`
	CashOutScore        float64 `mapstructure:"cash_out_score"`
	ResaleGroceryCount  int     `mapstructure:"resale_grocery_count"`
	ResaleWithdrawals   int     `mapstructure:"resale_withdrawals"`
	ResaleMaxGrocery    float64 `mapstructure:"resale_max_grocery"`
	ResaleScore         float64 `mapstructure:"resale_score"`
	DuplicateClaimScore float64 `mapstructure:"duplicate_claim_score"`

	// Velocity/burst
	BurstAbsoluteFloor int     `mapstructure:"burst_absolute_floor"`
	BurstStdDevFactor  float64 `mapstructure:"burst_std_dev_factor"`
	BurstScoreCap      float64 `mapstructure:"burst_score_cap"`

	// Network analysis
	NetworkWindowDays  int     `mapstructure:"network_window_days"`
	RingConnections    int     `mapstructure:"ring_connections"`
	RingSharedTxns     int     `mapstructure:"ring_shared_txns"`
	RingScore          float64 `mapstructure:"ring_score"`
	MerchantFraudRate  float64 `mapstructure:"merchant_fraud_rate"`
	MerchantFraudCount int     `mapstructure:"merchant_fraud_count"`
	MerchantScoreCap   float64 `mapstructure:"merchant_score_cap"`
	CollusionAccounts  int     `mapstructure:"collusion_accounts"`
	CollusionTxns      int     `mapstructure:"collusion_txns"`
	CollusionScore     float64 `mapstructure:"collusion_score"`
	KnownFraudScore    float64 `mapstructure:"known_fraud_score"`

	// Sanctions/geography
	AccountMatchScore  float64 `mapstructure:"account_match_score"`
	MerchantMatchScore float64 `mapstructure:"merchant_match_score"`
	CountryMatchScore  float64 `mapstructure:"country_match_score"`
	StateMatchScore    float64 `mapstructure:"state_match_score"`

	// Predictive scorer
	PredictiveWeight float64 `mapstructure:"predictive_weight"`
}

// AlertsConfig holds alert lifecycle configuration
type AlertsConfig struct {
	ReviewTimeout   time.Duration `mapstructure:"review_timeout"`
	RetentionWindow time.Duration `mapstructure:"retention_window"`
}

// SchedulerConfig holds background job intervals
type SchedulerConfig struct {
	PatternReloadInterval   time.Duration `mapstructure:"pattern_reload_interval"`
	WatchlistReloadInterval time.Duration `mapstructure:"watchlist_reload_interval"`
	ProfileEvictionInterval time.Duration `mapstructure:"profile_eviction_interval"`
	ProfileIdleTTL          time.Duration `mapstructure:"profile_idle_ttl"`
	AlertArchivalInterval   time.Duration `mapstructure:"alert_archival_interval"`
	DailyReportHourUTC      int           `mapstructure:"daily_report_hour_utc"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName   string  `mapstructure:"service_name"`
	Environment   string  `mapstructure:"environment"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
	Debug         bool    `mapstructure:"debug"`
}

// SecurityConfig holds API security configuration
type SecurityConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("RISK_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/risk-engine")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults + env
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "risk_engine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", "30m")

	// Redis defaults (optimized for low latency)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")
	v.SetDefault("redis.bucket_ttl", "25h")

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "risk-engine-group")
	v.SetDefault("kafka.transaction_topic", "payments.transactions.created")
	v.SetDefault("kafka.alerts_topic", "risk.alerts")
	v.SetDefault("kafka.actions_topic", "risk.actions")
	v.SetDefault("kafka.audit_topic", "risk.audit")

	// Engine defaults
	v.SetDefault("engine.detector_timeout", "300ms")
	v.SetDefault("engine.max_eval_latency", "500ms")
	v.SetDefault("engine.error_contribution", 30.0)
	v.SetDefault("engine.block_threshold", 95.0)
	v.SetDefault("engine.hold_threshold", 80.0)
	v.SetDefault("engine.monitor_threshold", 60.0)
	v.SetDefault("engine.log_threshold", 30.0)

	// Detector defaults: tuned heuristics carried from the prior system
	v.SetDefault("detectors.baseline_window_days", 90)
	v.SetDefault("detectors.min_history", 10)
	v.SetDefault("detectors.amount_z_score", 3.0)
	v.SetDefault("detectors.amount_score_cap", 25.0)
	v.SetDefault("detectors.hour_deviation", 8.0)
	v.SetDefault("detectors.time_anomaly_score", 10.0)
	v.SetDefault("detectors.rare_category_share", 0.05)
	v.SetDefault("detectors.rare_category_min_tx", 20)
	v.SetDefault("detectors.category_score", 15.0)

	v.SetDefault("detectors.spending_deviation", 3.0)
	v.SetDefault("detectors.spending_score_cap", 20.0)
	v.SetDefault("detectors.hour_change_score", 5.0)
	v.SetDefault("detectors.category_change_score", 5.0)
	v.SetDefault("detectors.travel_speed_mph", 500.0)
	v.SetDefault("detectors.takeover_score", 30.0)
	v.SetDefault("detectors.diversification_txns", 5)
	v.SetDefault("detectors.diversification_cats", 3)
	v.SetDefault("detectors.cash_out_max_count", 5)
	v.SetDefault("detectors.cash_out_max_volume", 1000.0)
	v.SetDefault("detectors.cash_out_score", 20.0)
	v.SetDefault("detectors.resale_grocery_count", 3)
	v.SetDefault("detectors.resale_withdrawals", 2)
	v.SetDefault("detectors.resale_max_grocery", 200.0)
	v.SetDefault("detectors.resale_score", 25.0)
	v.SetDefault("detectors.duplicate_claim_score", 30.0)

	v.SetDefault("detectors.burst_absolute_floor", 10)
	v.SetDefault("detectors.burst_std_dev_factor", 2.0)
	v.SetDefault("detectors.burst_score_cap", 30.0)

	v.SetDefault("detectors.network_window_days", 30)
	v.SetDefault("detectors.ring_connections", 5)
	v.SetDefault("detectors.ring_shared_txns", 20)
	v.SetDefault("detectors.ring_score", 35.0)
	v.SetDefault("detectors.merchant_fraud_rate", 0.10)
	v.SetDefault("detectors.merchant_fraud_count", 10)
	v.SetDefault("detectors.merchant_score_cap", 50.0)
	v.SetDefault("detectors.collusion_accounts", 5)
	v.SetDefault("detectors.collusion_txns", 10)
	v.SetDefault("detectors.collusion_score", 25.0)
	v.SetDefault("detectors.known_fraud_score", 40.0)

	v.SetDefault("detectors.account_match_score", 50.0)
	v.SetDefault("detectors.merchant_match_score", 30.0)
	v.SetDefault("detectors.country_match_score", 40.0)
	v.SetDefault("detectors.state_match_score", 20.0)

	v.SetDefault("detectors.predictive_weight", 50.0)

	// Alert lifecycle defaults
	v.SetDefault("alerts.review_timeout", "72h")
	v.SetDefault("alerts.retention_window", "720h") // 30 days

	// Scheduler defaults
	v.SetDefault("scheduler.pattern_reload_interval", "1h")
	v.SetDefault("scheduler.watchlist_reload_interval", "24h")
	v.SetDefault("scheduler.profile_eviction_interval", "30m")
	v.SetDefault("scheduler.profile_idle_ttl", "1h")
	v.SetDefault("scheduler.alert_archival_interval", "6h")
	v.SetDefault("scheduler.daily_report_hour_utc", 0)

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "risk-engine")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 0.1)
	v.SetDefault("telemetry.debug", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
}
