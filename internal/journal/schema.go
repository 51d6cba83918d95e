package journal

// Decimals are stored as TEXT to keep them exact; times as unix nanoseconds.
// log_seq is the position of a fill or rejection in the run's trade log.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	params TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	initial_cash TEXT NOT NULL,
	final_equity TEXT NOT NULL,
	summary TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	fill_id TEXT NOT NULL,
	time INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	fee TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	closing INTEGER NOT NULL,
	reason TEXT NOT NULL,
	log_seq INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS rejections (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	time INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	code TEXT NOT NULL,
	reason TEXT NOT NULL,
	intent_reason TEXT NOT NULL,
	log_seq INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	time INTEGER NOT NULL,
	cash TEXT NOT NULL,
	equity TEXT NOT NULL,
	gross_exposure TEXT NOT NULL,
	drawdown REAL NOT NULL,
	volatility REAL NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS alerts (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	time INTEGER NOT NULL,
	rule TEXT NOT NULL,
	metric TEXT NOT NULL,
	operator TEXT NOT NULL,
	threshold REAL NOT NULL,
	observed REAL NOT NULL,
	severity TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy, created_at);
`
