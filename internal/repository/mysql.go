package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS shops (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(191) NOT NULL,
			description TEXT NOT NULL,
			icon MEDIUMTEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE KEY uniq_shops_name (name)
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			shop_id BIGINT NOT NULL,
			item_data MEDIUMTEXT NOT NULL,
			quantity INT NOT NULL DEFAULT 0,
			is_selling BOOLEAN NOT NULL DEFAULT TRUE,
			price DECIMAL(10,2) NOT NULL,
			creator VARCHAR(64) NULL,
			INDEX idx_items_shop (shop_id),
			CONSTRAINT fk_items_shop FOREIGN KEY (shop_id) REFERENCES shops(id)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			recipient VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_notifications_recipient (recipient, is_read),
			INDEX idx_notifications_created (created_at)
		)`,
	},
	isDuplicate: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

// OpenMySQL connects to MySQL and applies the schema.
func OpenMySQL(ctx context.Context, dsn string) (*Database, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	d := &Database{db: db, dialect: mysqlDialect}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}
