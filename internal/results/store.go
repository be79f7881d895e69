package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"tradelab/internal/engine"
	"tradelab/types"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one finished engine run as handed to the archive.
type Run struct {
	Name       string
	Symbol     string
	Interval   types.Interval
	StartedAt  time.Time
	FinishedAt time.Time
	Report     *engine.Report
	Equity     []types.PortfolioView
	Trades     []types.Trade
}

// RunSummary is the listing row for a stored run.
type RunSummary struct {
	ID          int64
	Name        string
	Symbol      string
	Interval    types.Interval
	FinishedAt  time.Time
	NetProfit   decimal.Decimal
	TotalTrades int
}

// RunRecord is a stored run read back in full.
type RunRecord struct {
	RunSummary
	StartedAt time.Time
	Report    engine.Report
	Equity    []EquityPoint
	Trades    []types.Trade
}

type EquityPoint struct {
	Time   time.Time
	Cash   decimal.Decimal
	Equity decimal.Decimal
}

// Store archives finished runs in a SQLite file.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive at path with WAL mode enabled.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}

	return &Store{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		net_profit TEXT NOT NULL,
		total_trades INTEGER NOT NULL,
		report BLOB NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS equity (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		ts INTEGER NOT NULL,
		cash TEXT NOT NULL,
		equity TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
	`CREATE TABLE IF NOT EXISTS trades (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT NOT NULL,
		fees TEXT NOT NULL,
		net_profit TEXT NOT NULL,
		open_time INTEGER NOT NULL,
		close_time INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

// SaveRun stores the run and returns its id. The run row, equity curve
// and round trips are written in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) (int64, error) {
	if run.Report == nil {
		return 0, errors.New("run has no report")
	}
	payload, err := json.Marshal(run.Report)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (name, symbol, interval, started_at, finished_at, net_profit, total_trades, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Name, run.Symbol, string(run.Interval),
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Report.NetProfit.String(), run.Report.TotalTrades, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for i, view := range run.Equity {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO equity (run_id, seq, ts, cash, equity) VALUES (?, ?, ?, ?, ?)",
			id, i, view.Time.Unix(), view.Cash.String(), view.Equity().String(),
		)
		if err != nil {
			return 0, fmt.Errorf("insert equity point %d: %w", i, err)
		}
	}

	for i, trade := range run.Trades {
		// Open trips store a zero close_time so Closed() survives the
		// round trip through the table.
		closeTime := int64(0)
		if trade.Closed() {
			closeTime = trade.CloseTime.Unix()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, seq, symbol, quantity, entry_price, exit_price, fees, net_profit, open_time, close_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, trade.Symbol,
			trade.Quantity.String(), trade.EntryPrice.String(), trade.ExitPrice.String(),
			trade.Fees.String(), trade.NetProfit.String(),
			trade.OpenTime.Unix(), closeTime,
		)
		if err != nil {
			return 0, fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns stored runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, symbol, interval, finished_at, net_profit, total_trades FROM runs ORDER BY finished_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		summary, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun reads one run back in full, including its equity curve and
// round trips.
func (s *Store) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, symbol, interval, started_at, finished_at, net_profit, total_trades, report FROM runs WHERE id = ?", id)

	var record RunRecord
	var startedAt, finishedAt int64
	var netProfit string
	var payload []byte
	err := row.Scan(&record.ID, &record.Name, &record.Symbol, (*string)(&record.Interval),
		&startedAt, &finishedAt, &netProfit, &record.TotalTrades, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	record.StartedAt = time.Unix(startedAt, 0).UTC()
	record.FinishedAt = time.Unix(finishedAt, 0).UTC()
	record.NetProfit, err = decimal.NewFromString(netProfit)
	if err != nil {
		return nil, fmt.Errorf("parse net profit: %w", err)
	}
	if err := json.Unmarshal(payload, &record.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	if record.Equity, err = s.equityPoints(ctx, id); err != nil {
		return nil, err
	}
	if record.Trades, err = s.roundTrips(ctx, id); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) equityPoints(ctx context.Context, runID int64) ([]EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ts, cash, equity FROM equity WHERE run_id = ? ORDER BY seq ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()

	var points []EquityPoint
	for rows.Next() {
		var ts int64
		var cash, equity string
		if err := rows.Scan(&ts, &cash, &equity); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		point := EquityPoint{Time: time.Unix(ts, 0).UTC()}
		if point.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("parse cash: %w", err)
		}
		if point.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("parse equity: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity: %w", err)
	}
	return points, nil
}

func (s *Store) roundTrips(ctx context.Context, runID int64) ([]types.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, entry_price, exit_price, fees, net_profit, open_time, close_time
		 FROM trades WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.Trade
	for rows.Next() {
		var trade types.Trade
		var quantity, entry, exit, fees, netProfit string
		var openTime, closeTime int64
		err := rows.Scan(&trade.Symbol, &quantity, &entry, &exit, &fees, &netProfit,
			&openTime, &closeTime)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trade.OpenTime = time.Unix(openTime, 0).UTC()
		if closeTime != 0 {
			trade.CloseTime = time.Unix(closeTime, 0).UTC()
		}
		if trade.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}
		if trade.EntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, fmt.Errorf("parse entry price: %w", err)
		}
		if trade.ExitPrice, err = decimal.NewFromString(exit); err != nil {
			return nil, fmt.Errorf("parse exit price: %w", err)
		}
		if trade.Fees, err = decimal.NewFromString(fees); err != nil {
			return nil, fmt.Errorf("parse fees: %w", err)
		}
		if trade.NetProfit, err = decimal.NewFromString(netProfit); err != nil {
			return nil, fmt.Errorf("parse net profit: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

func scanRunSummary(rows *sql.Rows) (RunSummary, error) {
	var summary RunSummary
	var finishedAt int64
	var netProfit string
	err := rows.Scan(&summary.ID, &summary.Name, &summary.Symbol, (*string)(&summary.Interval),
		&finishedAt, &netProfit, &summary.TotalTrades)
	if err != nil {
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}
	summary.FinishedAt = time.Unix(finishedAt, 0).UTC()
	summary.NetProfit, err = decimal.NewFromString(netProfit)
	if err != nil {
		return RunSummary{}, fmt.Errorf("parse net profit: %w", err)
	}
	return summary, nil
}
