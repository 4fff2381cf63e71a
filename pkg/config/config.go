package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultHouseAddress holds the reserve when LEDGER_MODE=memory and no HOUSE_ADDRESS is set.
const DefaultHouseAddress = "0x00000000000000000000000000000000000c01f1"

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Settlement
	SettlementMode    string // "sync" or "deferred"
	Coefficient       uint64 // hundredths, 195 = 1.95x
	MinStake          uint64
	MaxStake          uint64
	ParamsFile        string
	HouseAddress      string
	AdminAddresses    string // comma separated
	ResolverAddresses string // comma separated
	OracleServerSeed  string // hex, random when empty

	// Ledger
	LedgerMode          string // "memory" or "erc20"
	ReserveInitial      uint64
	ERC20RPCURL         string
	ERC20TokenAddress   string
	HousePrivateKey     string
	ERC20GasLimit       uint64
	ERC20ReceiptTimeout time.Duration

	// Storage
	StorageMode    string // "memory", "postgres" or "sqlite"
	PostgresHost   string
	PostgresPort   string
	PostgresUser   string
	PostgresPass   string
	PostgresDB     string
	PostgresSSL    string
	SQLitePath     string
	CacheMaxWagers int64

	// Notifications
	NotifyConsole         bool
	NotifyQueueSize       int
	KafkaBrokers          string // comma separated, disabled when empty
	KafkaTopicSettlements string
	RedisAddr             string // disabled when empty
	RedisChannel          string

	// WebSocket
	WSPingInterval          time.Duration
	WSDialTimeout           time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Reserve monitor
	ReserveCheckInterval   time.Duration
	ReserveLowWatermark    uint64
	ReserveHysteresisRatio float64
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		SettlementMode:    getEnvOrDefault("SETTLEMENT_MODE", "sync"),
		Coefficient:       getUint64OrDefault("COEFFICIENT", 195),
		MinStake:          getUint64OrDefault("MIN_STAKE", 100),
		MaxStake:          getUint64OrDefault("MAX_STAKE", 1_000_000_000_000_000_000),
		ParamsFile:        os.Getenv("PARAMS_FILE"),
		HouseAddress:      getEnvOrDefault("HOUSE_ADDRESS", DefaultHouseAddress),
		AdminAddresses:    os.Getenv("ADMIN_ADDRESSES"),
		ResolverAddresses: os.Getenv("RESOLVER_ADDRESSES"),
		OracleServerSeed:  os.Getenv("ORACLE_SERVER_SEED"),

		LedgerMode:          getEnvOrDefault("LEDGER_MODE", "memory"),
		ReserveInitial:      getUint64OrDefault("RESERVE_INITIAL", 0),
		ERC20RPCURL:         os.Getenv("ERC20_RPC_URL"),
		ERC20TokenAddress:   os.Getenv("ERC20_TOKEN_ADDRESS"),
		HousePrivateKey:     os.Getenv("HOUSE_PRIVATE_KEY"),
		ERC20GasLimit:       getUint64OrDefault("ERC20_GAS_LIMIT", 100_000),
		ERC20ReceiptTimeout: getDurationOrDefault("ERC20_RECEIPT_TIMEOUT", 2*time.Minute),

		StorageMode:    getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost:   getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:   getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:   getEnvOrDefault("POSTGRES_USER", "coinflip"),
		PostgresPass:   getEnvOrDefault("POSTGRES_PASSWORD", "coinflip"),
		PostgresDB:     getEnvOrDefault("POSTGRES_DB", "coinflip"),
		PostgresSSL:    getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		SQLitePath:     getEnvOrDefault("SQLITE_PATH", "coinflip.db"),
		CacheMaxWagers: int64(getIntOrDefault("CACHE_MAX_WAGERS", 10_000)),

		NotifyConsole:         getBoolOrDefault("NOTIFY_CONSOLE", false),
		NotifyQueueSize:       getIntOrDefault("NOTIFY_QUEUE_SIZE", 1024),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		KafkaTopicSettlements: getEnvOrDefault("KAFKA_TOPIC_SETTLEMENTS", "coinflip.settlements"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisChannel:          getEnvOrDefault("REDIS_CHANNEL", "coinflip:settlements"),

		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 30*time.Second),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 256),

		ReserveCheckInterval:   getDurationOrDefault("RESERVE_CHECK_INTERVAL", 30*time.Second),
		ReserveLowWatermark:    getUint64OrDefault("RESERVE_LOW_WATERMARK", 0),
		ReserveHysteresisRatio: getFloat64OrDefault("RESERVE_HYSTERESIS_RATIO", 1.2),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.SettlementMode != "sync" && c.SettlementMode != "deferred" {
		return fmt.Errorf("SETTLEMENT_MODE must be 'sync' or 'deferred', got %q", c.SettlementMode)
	}

	if c.Coefficient <= 100 || c.Coefficient >= 200 {
		return fmt.Errorf("COEFFICIENT must be between 101 and 199, got %d", c.Coefficient)
	}

	if c.MinStake > c.MaxStake {
		return fmt.Errorf("MIN_STAKE %d exceeds MAX_STAKE %d", c.MinStake, c.MaxStake)
	}

	err := validateAddressList("ADMIN_ADDRESSES", c.AdminAddresses)
	if err != nil {
		return err
	}
	err = validateAddressList("RESOLVER_ADDRESSES", c.ResolverAddresses)
	if err != nil {
		return err
	}

	switch c.LedgerMode {
	case "memory":
		if !common.IsHexAddress(c.HouseAddress) {
			return fmt.Errorf("HOUSE_ADDRESS is not a valid address: %q", c.HouseAddress)
		}
	case "erc20":
		if c.ERC20RPCURL == "" {
			return fmt.Errorf("ERC20_RPC_URL is required when LEDGER_MODE=erc20")
		}
		if !common.IsHexAddress(c.ERC20TokenAddress) {
			return fmt.Errorf("ERC20_TOKEN_ADDRESS is not a valid address: %q", c.ERC20TokenAddress)
		}
		if c.HousePrivateKey == "" {
			return fmt.Errorf("HOUSE_PRIVATE_KEY is required when LEDGER_MODE=erc20")
		}
	default:
		return fmt.Errorf("LEDGER_MODE must be 'memory' or 'erc20', got %q", c.LedgerMode)
	}

	switch c.StorageMode {
	case "memory", "postgres":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_MODE=sqlite")
		}
	default:
		return fmt.Errorf("STORAGE_MODE must be 'memory', 'postgres' or 'sqlite', got %q", c.StorageMode)
	}

	if c.CacheMaxWagers <= 0 {
		return fmt.Errorf("CACHE_MAX_WAGERS must be positive, got %d", c.CacheMaxWagers)
	}

	if c.ReserveHysteresisRatio < 1.0 {
		return fmt.Errorf("RESERVE_HYSTERESIS_RATIO must be at least 1.0, got %f", c.ReserveHysteresisRatio)
	}

	return nil
}

// Brokers returns KAFKA_BROKERS split on commas.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func validateAddressList(key string, list string) error {
	for _, raw := range splitList(list) {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("%s contains an invalid address: %q", key, raw)
		}
	}
	return nil
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getUint64OrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	uintVal, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return uintVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
