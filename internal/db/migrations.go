package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'shipment_status') THEN
			CREATE TYPE shipment_status AS ENUM ('Available', 'Booked', 'In Transit', 'Delivered', 'Invoiced', 'Paid', 'Cancelled');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(320) NOT NULL,
		first_name VARCHAR(128) NOT NULL DEFAULT '',
		last_name VARCHAR(128) NOT NULL DEFAULT '',
		company_name VARCHAR(256) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		phone_number VARCHAR(32) NOT NULL DEFAULT '',
		dot_number VARCHAR(32) NOT NULL DEFAULT '',
		user_type VARCHAR(32) NOT NULL DEFAULT 'Shipper',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (email);`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		account_name VARCHAR(256) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		payment_terms VARCHAR(16) NOT NULL DEFAULT 'Net 30',
		accessorial_pricing JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_by UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS shipments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		shipment_number VARCHAR(16) NOT NULL CHECK (shipment_number ~ '^F-[0-9]{5}$'),
		shipment_type VARCHAR(32) NOT NULL,
		status shipment_status NOT NULL DEFAULT 'Available',
		account_id UUID REFERENCES accounts(id),
		pickup_date TIMESTAMPTZ NOT NULL,
		delivery_date TIMESTAMPTZ NOT NULL,
		origin_address TEXT NOT NULL,
		origin_city VARCHAR(128) NOT NULL DEFAULT '',
		origin_state VARCHAR(64) NOT NULL DEFAULT '',
		origin_zipcode VARCHAR(16) NOT NULL DEFAULT '',
		origin_country VARCHAR(64) NOT NULL DEFAULT '',
		destination_address TEXT NOT NULL,
		destination_city VARCHAR(128) NOT NULL DEFAULT '',
		destination_state VARCHAR(64) NOT NULL DEFAULT '',
		destination_zipcode VARCHAR(16) NOT NULL DEFAULT '',
		destination_country VARCHAR(64) NOT NULL DEFAULT '',
		distance NUMERIC(12,2) NOT NULL DEFAULT 0,
		equipment_type VARCHAR(64) NOT NULL,
		commodity VARCHAR(256) NOT NULL DEFAULT '',
		weight NUMERIC(12,2) NOT NULL DEFAULT 0,
		base_rate_amount NUMERIC(18,2) NOT NULL,
		base_rate_currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		base_rate_type VARCHAR(16) NOT NULL DEFAULT 'flat',
		total_rate NUMERIC(18,2) NOT NULL,
		rate_per_mile NUMERIC(18,2),
		accessorials JSONB NOT NULL DEFAULT '{}'::jsonb,
		accessorial_pricing JSONB NOT NULL DEFAULT '{}'::jsonb,
		special_instructions TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		shipper_id UUID NOT NULL REFERENCES users(id),
		posted_by_id UUID NOT NULL REFERENCES users(id),
		carrier_id UUID REFERENCES users(id),
		assigned_carrier_id UUID REFERENCES users(id),
		booked_by_id UUID REFERENCES users(id),
		booked_at TIMESTAMPTZ,
		cancelled_by_id UUID REFERENCES users(id),
		cancelled_at TIMESTAMPTZ,
		rate_confirmation_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_shipments_carrier_matches_status CHECK (
			(status IN ('Booked', 'In Transit', 'Delivered', 'Invoiced', 'Paid'))
			= (carrier_id IS NOT NULL AND assigned_carrier_id IS NOT NULL)
		)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipments_number ON shipments (shipment_number);`,
	`CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments (status);`,
	`CREATE INDEX IF NOT EXISTS idx_shipments_carrier_id ON shipments (carrier_id) WHERE carrier_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_shipments_shipper_id ON shipments (shipper_id);`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		download_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_download_url ON documents (download_url);`,
	`CREATE TABLE IF NOT EXISTS shipment_documents (
		shipment_id UUID NOT NULL REFERENCES shipments(id),
		document_id UUID NOT NULL REFERENCES documents(id),
		position BIGSERIAL NOT NULL,
		PRIMARY KEY (shipment_id, document_id)
	);`,
	`CREATE TABLE IF NOT EXISTS user_documents (
		user_id UUID NOT NULL REFERENCES users(id),
		document_id UUID NOT NULL REFERENCES documents(id),
		position BIGSERIAL NOT NULL,
		PRIMARY KEY (user_id, document_id)
	);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
