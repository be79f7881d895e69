package cfg

import (
	"github.com/spf13/viper"
)

// Config carries every knob the binaries read. Values come from a .env
// file when present, overridden by environment variables. Prices land in
// decimals at the call sites; floats live only here.
type Config struct {
	LogLevel string

	Symbol   string
	Interval string
	Start    string
	End      string

	InitialCash       float64
	AllowShortSelling bool
	CommissionRate    float64

	// OrderQuantity > 0 selects fixed-quantity sizing, otherwise the
	// sizer spends CashFraction of free cash per entry.
	OrderQuantity float64
	CashFraction  float64

	// Strategy picks the decision logic: "dipbuy" or "donchian".
	Strategy string

	DeclineBars int
	HoldBars    int

	EntryLookback int
	ExitLookback  int
	ATRPeriod     int
	ATRMultiple   float64

	RiskFreeRate  float64
	ReportName    string
	TradesCSVPath string

	DataDir     string
	DatabaseURL string
	ResultsPath string

	StreamURL string

	APIBaseURL   string
	APIToken     string
	Exchange     string
	UniversePath string
	ThrottleMS   int
}

func Load() Config {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SYMBOL", "AAPL")
	v.SetDefault("INTERVAL", "1d")
	v.SetDefault("START", "2022-01-01")
	v.SetDefault("END", "2023-01-01")

	v.SetDefault("INITIAL_CASH", 10000.0)
	v.SetDefault("ALLOW_SHORT_SELLING", false)
	v.SetDefault("COMMISSION_RATE", 0.001)
	v.SetDefault("ORDER_QUANTITY", 0.0)
	v.SetDefault("CASH_FRACTION", 0.95)

	v.SetDefault("STRATEGY", "dipbuy")

	v.SetDefault("DECLINE_BARS", 2)
	v.SetDefault("HOLD_BARS", 5)

	v.SetDefault("ENTRY_LOOKBACK", 20)
	v.SetDefault("EXIT_LOOKBACK", 10)
	v.SetDefault("ATR_PERIOD", 20)
	v.SetDefault("ATR_MULTIPLE", 2.0)

	v.SetDefault("RISK_FREE_RATE", 0.02)
	v.SetDefault("REPORT_NAME", "Backtest Report")
	v.SetDefault("TRADES_CSV_PATH", "")

	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("RESULTS_PATH", "")

	v.SetDefault("STREAM_URL", "wss://stream.binance.com:9443/ws")

	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("API_TOKEN", "")
	v.SetDefault("EXCHANGE", "")
	v.SetDefault("UNIVERSE_PATH", "")
	v.SetDefault("THROTTLE_MS", 1000)

	return Config{
		LogLevel: v.GetString("LOG_LEVEL"),

		Symbol:   v.GetString("SYMBOL"),
		Interval: v.GetString("INTERVAL"),
		Start:    v.GetString("START"),
		End:      v.GetString("END"),

		InitialCash:       v.GetFloat64("INITIAL_CASH"),
		AllowShortSelling: v.GetBool("ALLOW_SHORT_SELLING"),
		CommissionRate:    v.GetFloat64("COMMISSION_RATE"),
		OrderQuantity:     v.GetFloat64("ORDER_QUANTITY"),
		CashFraction:      v.GetFloat64("CASH_FRACTION"),

		Strategy: v.GetString("STRATEGY"),

		DeclineBars: v.GetInt("DECLINE_BARS"),
		HoldBars:    v.GetInt("HOLD_BARS"),

		EntryLookback: v.GetInt("ENTRY_LOOKBACK"),
		ExitLookback:  v.GetInt("EXIT_LOOKBACK"),
		ATRPeriod:     v.GetInt("ATR_PERIOD"),
		ATRMultiple:   v.GetFloat64("ATR_MULTIPLE"),

		RiskFreeRate:  v.GetFloat64("RISK_FREE_RATE"),
		ReportName:    v.GetString("REPORT_NAME"),
		TradesCSVPath: v.GetString("TRADES_CSV_PATH"),

		DataDir:     v.GetString("DATA_DIR"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		ResultsPath: v.GetString("RESULTS_PATH"),

		StreamURL: v.GetString("STREAM_URL"),

		APIBaseURL:   v.GetString("API_BASE_URL"),
		APIToken:     v.GetString("API_TOKEN"),
		Exchange:     v.GetString("EXCHANGE"),
		UniversePath: v.GetString("UNIVERSE_PATH"),
		ThrottleMS:   v.GetInt("THROTTLE_MS"),
	}
}
