package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Venue struct {
	// PrivateKey signs exchange actions. Hex, with or without 0x prefix.
	PrivateKey string
	Mainnet    bool
}

type Grid struct {
	Coin   string `json:"coin"`
	Levels int    `json:"levels"`
	Long   bool   `json:"long"`
	Short  bool   `json:"short"`

	// Explicit band. Both zero means "derive from mid".
	GridMin float64 `json:"grid_min"`
	GridMax float64 `json:"grid_max"`

	// Geometric spacing. Zero means linear.
	Ratio    float64 `json:"ratio"`
	Centered bool    `json:"centered"`

	TakeProfit   float64 `json:"take_profit"`
	SizePerLevel float64 `json:"size_per_level"`
}

type Risk struct {
	MaxPositionFactor  float64       `json:"max_position_factor"`
	MinBalanceFactor   float64       `json:"min_balance_factor"`
	MinOrderRatio      float64       `json:"min_order_ratio"`
	MaxTransportErrors int           `json:"max_transport_errors"`
	ErrorWindow        time.Duration `json:"-"`
	VolWindow          time.Duration `json:"-"`
	VolThreshold       float64       `json:"vol_threshold"`
}

type Engine struct {
	TickInterval      time.Duration
	CheckInterval     time.Duration
	ReportInterval    time.Duration
	RebalanceEnabled  bool
	RebalanceInterval time.Duration
}

type Server struct {
	APIAddr     string
	JournalPath string
}

type Log struct {
	Level string
	File  string
}

type Config struct {
	Venue  Venue
	Grid   Grid
	Risk   Risk
	Engine Engine
	Server Server
	Log    Log
}

func Default() Config {
	return Config{
		Venue: Venue{Mainnet: false},
		Grid: Grid{
			Coin:         "ETH",
			Levels:       10,
			Long:         true,
			TakeProfit:   0.01,
			SizePerLevel: 0.05,
		},
		Risk: Risk{
			MaxPositionFactor:  1.5,
			MinBalanceFactor:   0.1,
			MinOrderRatio:      0.3,
			MaxTransportErrors: 10,
			ErrorWindow:        5 * time.Minute,
			VolWindow:          10 * time.Minute,
			VolThreshold:       0.05,
		},
		Engine: Engine{
			TickInterval:      2 * time.Second,
			CheckInterval:     5 * time.Second,
			ReportInterval:    60 * time.Second,
			RebalanceEnabled:  false,
			RebalanceInterval: time.Hour,
		},
		Server: Server{
			APIAddr:     ":8080",
			JournalPath: "data/journal",
		},
		Log: Log{Level: "info"},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment
// variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Venue.PrivateKey = getEnv("HG_PRIVATE_KEY", cfg.Venue.PrivateKey)
	if v := os.Getenv("HG_MAINNET"); v != "" {
		cfg.Venue.Mainnet = v == "true"
	}

	cfg.Grid.Coin = getEnv("HG_COIN", cfg.Grid.Coin)
	if v := os.Getenv("HG_LEVELS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Grid.Levels = n
		}
	}
	if v := os.Getenv("HG_TAKE_PROFIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Grid.TakeProfit = f
		}
	}
	if v := os.Getenv("HG_SIZE_PER_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Grid.SizePerLevel = f
		}
	}
	if v := os.Getenv("HG_SHORT"); v != "" {
		cfg.Grid.Short = v == "true"
		cfg.Grid.Long = !cfg.Grid.Short
	}

	if v := os.Getenv("HG_ERROR_WINDOW_SEC"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Risk.ErrorWindow = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("HG_VOL_WINDOW_SEC"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Risk.VolWindow = time.Duration(s) * time.Second
		}
	}

	if v := os.Getenv("HG_TICK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HG_REBALANCE_ENABLED"); v != "" {
		cfg.Engine.RebalanceEnabled = v == "true"
	}
	if v := os.Getenv("HG_REBALANCE_INTERVAL_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Engine.RebalanceInterval = time.Duration(m) * time.Minute
		}
	}

	cfg.Server.APIAddr = getEnv("HG_API_ADDR", cfg.Server.APIAddr)
	cfg.Server.JournalPath = getEnv("HG_JOURNAL_PATH", cfg.Server.JournalPath)
	cfg.Log.Level = getEnv("HG_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("HG_LOG_FILE", cfg.Log.File)

	return cfg
}

// LoadGridFile overlays grid and risk settings from a JSON file, when given.
func (c *Config) LoadGridFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read grid config: %w", err)
	}

	var file struct {
		Grid Grid `json:"grid"`
		Risk *struct {
			Risk
			ErrorWindowSec int `json:"error_window_sec"`
			VolWindowSec   int `json:"vol_window_sec"`
		} `json:"risk"`
	}
	file.Grid = c.Grid
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse grid config: %w", err)
	}

	c.Grid = file.Grid
	if file.Risk != nil {
		if file.Risk.MaxPositionFactor > 0 {
			c.Risk.MaxPositionFactor = file.Risk.MaxPositionFactor
		}
		if file.Risk.MinBalanceFactor > 0 {
			c.Risk.MinBalanceFactor = file.Risk.MinBalanceFactor
		}
		if file.Risk.MinOrderRatio > 0 {
			c.Risk.MinOrderRatio = file.Risk.MinOrderRatio
		}
		if file.Risk.MaxTransportErrors > 0 {
			c.Risk.MaxTransportErrors = file.Risk.MaxTransportErrors
		}
		if file.Risk.VolThreshold > 0 {
			c.Risk.VolThreshold = file.Risk.VolThreshold
		}
		if file.Risk.ErrorWindowSec > 0 {
			c.Risk.ErrorWindow = time.Duration(file.Risk.ErrorWindowSec) * time.Second
		}
		if file.Risk.VolWindowSec > 0 {
			c.Risk.VolWindow = time.Duration(file.Risk.VolWindowSec) * time.Second
		}
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Venue.PrivateKey == "" {
		return errors.New("private key is required (HG_PRIVATE_KEY)")
	}
	if c.Grid.Coin == "" {
		return errors.New("grid coin is required")
	}
	if c.Grid.Levels <= 0 {
		return fmt.Errorf("grid levels must be positive, got %d", c.Grid.Levels)
	}
	if c.Grid.Long == c.Grid.Short {
		return errors.New("exactly one of long/short mode must be enabled")
	}
	if c.Grid.TakeProfit <= 0 {
		return fmt.Errorf("take profit must be positive, got %v", c.Grid.TakeProfit)
	}
	if c.Grid.SizePerLevel <= 0 {
		return fmt.Errorf("size per level must be positive, got %v", c.Grid.SizePerLevel)
	}
	if (c.Grid.GridMin != 0 || c.Grid.GridMax != 0) && c.Grid.GridMin >= c.Grid.GridMax {
		return fmt.Errorf("grid bounds invalid: min %v >= max %v", c.Grid.GridMin, c.Grid.GridMax)
	}
	if c.Grid.Ratio != 0 && c.Grid.Ratio <= 1 {
		return fmt.Errorf("grid ratio must exceed 1, got %v", c.Grid.Ratio)
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
