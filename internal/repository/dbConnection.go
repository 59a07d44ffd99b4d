// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"sync"
	"time"

	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
)

// DBConnection wraps the single *sqlx.DB handle the Writer serializes all
// mutating operations through. Readers (the HTTP query layer) use the same
// pool directly since they never mutate.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens the PostgreSQL-compatible database named by dsn. It is a
// singleton the same way the teacher's repository layer is: one process,
// one pool, reused by every repository-style accessor.
func Connect(dsn string) {
	dbConnOnce.Do(func() {
		dbHandle, err := sqlx.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("sqlx.Open() error: %v", err)
		}

		dbHandle.SetConnMaxLifetime(time.Hour)
		dbHandle.SetMaxOpenConns(10)
		dbHandle.SetMaxIdleConns(10)

		if err := dbHandle.Ping(); err != nil {
			log.Fatalf("database ping failed: %v", err)
		}

		dbConnInstance = &DBConnection{DB: dbHandle}
	})
}

func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Fatal("database connection not initialized")
	}

	return dbConnInstance
}
