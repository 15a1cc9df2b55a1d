package receipt

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS receipts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	vendor       TEXT NOT NULL,
	date         TEXT NOT NULL,
	amount       REAL NOT NULL,
	category     TEXT,
	filename     TEXT NOT NULL UNIQUE,
	stored_path  TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_vendor ON receipts(vendor);
CREATE INDEX IF NOT EXISTS idx_receipts_date ON receipts(date);
CREATE INDEX IF NOT EXISTS idx_receipts_category ON receipts(category);
`

const receiptColumns = `id, vendor, date, amount, category, filename, stored_path, content_type, created_at, updated_at`

// SQLiteDB implements the DB interface on a SQLite file
type SQLiteDB struct {
	db *sqlx.DB
}

// NewSQLiteDB opens (or creates) the SQLite database at path and applies the schema
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sqlx.Connect("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// InsertReceipt stores a receipt and sets the autoincrement ID on it
func (s *SQLiteDB) InsertReceipt(receipt *Receipt) error {
	res, err := s.db.NamedExec(`INSERT INTO receipts
		(vendor, date, amount, category, filename, stored_path, content_type, created_at, updated_at)
		VALUES (:vendor, :date, :amount, :category, :filename, :stored_path, :content_type, :created_at, :updated_at)`,
		receipt)
	if err != nil {
		return fmt.Errorf("inserting receipt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading receipt id: %w", err)
	}
	receipt.ID = id
	return nil
}

// GetReceipt retrieves a receipt by ID
func (s *SQLiteDB) GetReceipt(id int64) (*Receipt, error) {
	return getReceipt(s.db, id)
}

func getReceipt(q sqlx.Queryer, id int64) (*Receipt, error) {
	var receipt Receipt
	err := sqlx.Get(q, &receipt, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying receipt: %w", err)
	}
	return &receipt, nil
}

func (s *SQLiteDB) selectReceipts(where string, args ...any) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	query := `SELECT ` + receiptColumns + ` FROM receipts ` + where + ` ORDER BY id`
	if err := s.db.Select(&receipts, query, args...); err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	return receipts, nil
}

// ListReceipts returns all receipts ordered by ID
func (s *SQLiteDB) ListReceipts() ([]*Receipt, error) {
	return s.selectReceipts("")
}

// FindByFilename returns receipts uploaded under filename
func (s *SQLiteDB) FindByFilename(filename string) ([]*Receipt, error) {
	return s.selectReceipts(`WHERE filename = ?`, filename)
}

// FindByContent returns receipts matching the vendor, date and amount exactly
func (s *SQLiteDB) FindByContent(vendor, date string, amount float64) ([]*Receipt, error) {
	return s.selectReceipts(`WHERE vendor = ? AND date = ? AND amount = ?`, vendor, date, amount)
}

// UpdateReceipt applies fn to the stored receipt inside a transaction
func (s *SQLiteDB) UpdateReceipt(id int64, fn func(*Receipt)) (*Receipt, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	receipt, err := getReceipt(tx, id)
	if err != nil {
		return nil, err
	}
	fn(receipt)
	receipt.ID = id

	_, err = tx.NamedExec(`UPDATE receipts SET
		vendor = :vendor, date = :date, amount = :amount, category = :category, updated_at = :updated_at
		WHERE id = :id`, receipt)
	if err != nil {
		return nil, fmt.Errorf("updating receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return receipt, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
