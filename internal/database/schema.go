package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
//
// bookings.active_flag is 1 while a booking holds seats and NULL once it is
// cancelled.  MySQL treats NULLs as distinct in unique keys, so
// uq_bookings_active allows any number of cancelled bookings but only one
// live booking per (user, event).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		username         VARCHAR(50)     NOT NULL,
		email            VARCHAR(255)    NOT NULL,
		password_hash    VARCHAR(255)    NOT NULL,
		role             ENUM('user','admin') NOT NULL DEFAULT 'user',
		tickets_attended INT             NOT NULL DEFAULT 0,
		is_active        TINYINT(1)      NOT NULL DEFAULT 1,
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS events (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		title              VARCHAR(200)    NOT NULL,
		description        TEXT            NOT NULL,
		event_date         DATETIME        NOT NULL,
		location           VARCHAR(255)    NOT NULL,
		image_url          VARCHAR(512)    NULL,
		ticket_price_cents BIGINT          NOT NULL,
		capacity           INT             NOT NULL,
		seats_left         INT             NOT NULL,
		status             ENUM('upcoming','ongoing','completed','cancelled','sold_out') NOT NULL DEFAULT 'upcoming',
		category           VARCHAR(32)     NOT NULL DEFAULT 'Other',
		created_by         BIGINT UNSIGNED NOT NULL,
		created_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_events_status_date (status, event_date),
		CONSTRAINT chk_events_price CHECK (ticket_price_cents >= 0),
		CONSTRAINT chk_events_seats CHECK (seats_left >= 0 AND seats_left <= capacity)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id             BIGINT UNSIGNED NOT NULL,
		event_id            BIGINT UNSIGNED NOT NULL,
		ticket_quantity     TINYINT UNSIGNED NOT NULL,
		total_price_cents   BIGINT          NOT NULL,
		status              ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
		payment_status      ENUM('pending','paid','refunded') NOT NULL DEFAULT 'pending',
		booked_at           DATETIME        NOT NULL,
		special_requests    VARCHAR(500)    NULL,
		contact_phone       VARCHAR(32)     NULL,
		contact_email       VARCHAR(255)    NULL,
		checkout_session_id VARCHAR(255)    NULL,
		active_flag         TINYINT GENERATED ALWAYS AS (IF(status <> 'cancelled', 1, NULL)) STORED,
		created_at          DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_bookings_active (user_id, event_id, active_flag),
		UNIQUE KEY uq_bookings_session (checkout_session_id),
		KEY idx_bookings_event (event_id),
		KEY idx_bookings_stale (status, payment_status, created_at),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_bookings_event FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE RESTRICT,
		CONSTRAINT chk_bookings_quantity CHECK (ticket_quantity BETWEEN 1 AND 10)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_ticket_events (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		booking_id BIGINT UNSIGNED NOT NULL,
		delta      INT             NOT NULL,
		reason     VARCHAR(32)     NOT NULL,
		created_at DATETIME        NOT NULL,
		PRIMARY KEY (id),
		KEY idx_ticket_events_user (user_id, created_at),
		CONSTRAINT fk_ticket_events_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
