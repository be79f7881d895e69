package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

type FeedConfig struct {
	symbol   string
	interval types.Interval
	start    time.Time
	end      time.Time
}

func NewFeedConfig(symbol string, interval types.Interval, start, end time.Time) *FeedConfig {
	return &FeedConfig{
		symbol:   symbol,
		interval: interval,
		start:    start,
		end:      end,
	}
}

type PortfolioConfig struct {
	initialCash       decimal.Decimal
	allowShortSelling bool
}

func NewPortfolioConfig(initialCash decimal.Decimal, allowShortSelling bool) *PortfolioConfig {
	return &PortfolioConfig{
		initialCash:       initialCash,
		allowShortSelling: allowShortSelling,
	}
}

type ReportingConfig struct {
	sharpeRiskFreeRate decimal.Decimal
	reportName         string
	tradesFilePath     string
}

func NewReportingConfig(sharpeRiskFreeRate decimal.Decimal, reportName, tradesFilePath string) *ReportingConfig {
	return &ReportingConfig{
		sharpeRiskFreeRate: sharpeRiskFreeRate,
		reportName:         reportName,
		tradesFilePath:     tradesFilePath,
	}
}
