package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the access control core
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createUsersTable,
		createPatientsTable,
		createAccessRequestsTable,
		createEmergencyAccessTable,
		createAccessLogsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createUsersIndexes,
		createPatientsIndexes,
		createAccessRequestsIndexes,
		createAccessLogsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(100) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(200) NOT NULL,
			role VARCHAR(20) NOT NULL,
			trust_score INTEGER NOT NULL DEFAULT 50,
			trust_updated_at TIMESTAMP WITH TIME ZONE,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(100) UNIQUE NOT NULL,
			age INTEGER,
			diagnosis TEXT,
			treatment TEXT,
			assigned_doctor VARCHAR(100),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAccessRequestsTable = `
		CREATE TABLE IF NOT EXISTS access_requests (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			requester_id VARCHAR(100) NOT NULL,
			role VARCHAR(20) NOT NULL,
			access_type VARCHAR(20) NOT NULL,
			reason TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			approved_by VARCHAR(100),
			approved_at TIMESTAMP WITH TIME ZONE,
			denied_by VARCHAR(100),
			denied_at TIMESTAMP WITH TIME ZONE,
			denial_reason TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		);`

	createEmergencyAccessTable = `
		CREATE TABLE IF NOT EXISTS emergency_access (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			granted_by VARCHAR(100) NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		);`

	createAccessLogsTable = `
		CREATE TABLE IF NOT EXISTS access_logs (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			actor_name VARCHAR(100) NOT NULL,
			role VARCHAR(20),
			patient_id VARCHAR(100),
			action VARCHAR(50) NOT NULL,
			justification TEXT,
			ip_address VARCHAR(45),
			status VARCHAR(30) NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createUsersIndexes = `
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);`

	createPatientsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name);`

	createAccessRequestsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_access_requests_patient ON access_requests(patient_id);
		CREATE INDEX IF NOT EXISTS idx_access_requests_status ON access_requests(status);`

	createAccessLogsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_access_logs_actor ON access_logs(actor_name, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_access_logs_patient ON access_logs(patient_id);`
)
