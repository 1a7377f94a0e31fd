package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/stacksx402/stacks-agent/internal/utils"
	_ "modernc.org/sqlite"
)

// SQLiteManager handles all wallet store operations
type SQLiteManager struct {
	dir    string
	cm     *utils.ConfigManager
	db     *sql.DB
	logger *utils.LogsManager
}

// NewSQLiteManager creates a new SQLite manager for the wallet store
func NewSQLiteManager(cm *utils.ConfigManager, logger *utils.LogsManager) (*SQLiteManager, error) {
	paths := utils.GetAppPaths("")
	sqlm := &SQLiteManager{
		dir:    paths.DataDir,
		cm:     cm,
		logger: logger,
	}

	db, err := sqlm.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %v", err)
	}
	sqlm.db = db

	if err := sqlm.InitWalletsTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize wallets table: %v", err)
	}

	if err := sqlm.InitPaymentLogTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize payment_log table: %v", err)
	}

	return sqlm, nil
}

// CreateConnection creates and configures the database connection
func (sqlm *SQLiteManager) CreateConnection() (*sql.DB, error) {
	// Make sure we have os specific path separator since we are adding this path to host's path
	dbFileName := sqlm.cm.GetConfigWithDefault("database_file", "./stacks-agent.db")
	switch runtime.GOOS {
	case "linux", "darwin":
		dbFileName = filepath.ToSlash(dbFileName)
	case "windows":
		dbFileName = filepath.FromSlash(dbFileName)
	default:
		err := fmt.Errorf("unsupported OS type `%s`", runtime.GOOS)
		return nil, err
	}

	path := dbFileName
	if !filepath.IsAbs(dbFileName) {
		path = filepath.Join(sqlm.dir, dbFileName)
	}

	db, err := sql.Open("sqlite",
		fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path))
	if err != nil {
		message := fmt.Sprintf("Can not create database connection. (%s)", err.Error())
		sqlm.logger.Log("error", message, "database")
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		message := fmt.Sprintf("Failed to enable foreign keys: %s", err.Error())
		sqlm.logger.Log("error", message, "database")
		return nil, err
	}

	// WAL for concurrent reads during writes
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		message := fmt.Sprintf("Failed to enable WAL mode: %s", err.Error())
		sqlm.logger.Log("warning", message, "database")
	}

	// Wallet writes must be durable before the insert returns; a crash after
	// a reported key creation or payment-log append must not lose the row
	_, err = db.Exec("PRAGMA synchronous = FULL;")
	if err != nil {
		message := fmt.Sprintf("Failed to set synchronous mode: %s", err.Error())
		sqlm.logger.Log("warning", message, "database")
	}

	return db, nil
}

// GetDB returns the database connection for direct access if needed
func (sqlm *SQLiteManager) GetDB() *sql.DB {
	return sqlm.db
}

// Close closes the database connection
func (sqlm *SQLiteManager) Close() error {
	if sqlm.db != nil {
		return sqlm.db.Close()
	}
	return nil
}

// PerformMaintenance runs database maintenance tasks
func (sqlm *SQLiteManager) PerformMaintenance() error {
	_, err := sqlm.db.Exec("PRAGMA optimize;")
	if err != nil {
		sqlm.logger.Log("warning", fmt.Sprintf("Failed to optimize database: %v", err), "database")
	}

	_, err = sqlm.db.Exec("PRAGMA incremental_vacuum(100);")
	if err != nil {
		sqlm.logger.Log("warning", fmt.Sprintf("Failed to vacuum database: %v", err), "database")
	}

	return nil
}
