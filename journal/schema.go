package journal

const Schema = `
CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	position_id TEXT NOT NULL,
	venue TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	market_price REAL NOT NULL,
	commission REAL NOT NULL,
	slippage REAL NOT NULL,
	time DATETIME NOT NULL,
	realized_pnl REAL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, fill_id)
);

CREATE INDEX IF NOT EXISTS idx_fills_run_time ON fills(run_id, time);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	positions_value REAL NOT NULL,
	equity REAL NOT NULL,
	PRIMARY KEY (run_id, time)
);

CREATE TABLE IF NOT EXISTS mode_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_mode TEXT NOT NULL,
	to_mode TEXT NOT NULL,
	reason TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	instruments TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	initial_cash REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_return REAL NOT NULL,
	sharpe REAL NOT NULL,
	sortino REAL NOT NULL,
	calmar REAL,
	max_drawdown REAL NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL,
	benchmark_return REAL NOT NULL,
	excess_return REAL NOT NULL,
	config BLOB,
	result BLOB
);
`
