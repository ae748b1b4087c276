package storage

// One statement per entry: the MySQL driver rejects multi-statement Exec
// unless the DSN opts in.
var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			item_name VARCHAR(255) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			stock INT NOT NULL DEFAULT 100
		)`,
		`CREATE TABLE IF NOT EXISTS store_users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			membership_date DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			transaction_date DATE NOT NULL,
			payment_method VARCHAR(16) NOT NULL,
			request_id CHAR(36) NOT NULL,
			UNIQUE KEY uq_transactions_request_id (request_id)
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id BIGINT PRIMARY KEY,
			transaction_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			quantity INT NOT NULL,
			INDEX idx_purchases_item_id (item_id),
			INDEX idx_purchases_transaction_id (transaction_id)
		)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			item_name VARCHAR(255) NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			stock INT NOT NULL DEFAULT 100 CHECK (stock >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS store_users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			membership_date DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			transaction_date DATE NOT NULL,
			payment_method VARCHAR(16) NOT NULL,
			request_id UUID NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id BIGINT PRIMARY KEY,
			transaction_id BIGINT NOT NULL REFERENCES transactions(id),
			item_id BIGINT NOT NULL REFERENCES items(id),
			quantity INT NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_item_id ON purchases (item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_transaction_id ON purchases (transaction_id)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			item_name TEXT NOT NULL,
			price TEXT NOT NULL,
			stock INTEGER NOT NULL DEFAULT 100 CHECK (stock >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS store_users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			membership_date DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			transaction_date DATE NOT NULL,
			payment_method TEXT NOT NULL,
			request_id TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id INTEGER PRIMARY KEY,
			transaction_id INTEGER NOT NULL REFERENCES transactions(id),
			item_id INTEGER NOT NULL REFERENCES items(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_item_id ON purchases (item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_transaction_id ON purchases (transaction_id)`,
	},
}
