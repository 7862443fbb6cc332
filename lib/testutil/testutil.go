package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"punchpass-backend/lib/sqliteutil"
	"punchpass-backend/lib/telemetry"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanup := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	var database *sql.DB
	if params.DbSchema != "" {
		var err error
		database, err = sqliteutil.OpenDB(params.DbSchema, params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}

	return ServiceResult{DB: database}, func() {
		if database != nil {
			database.Close()
		}
		cleanup()
	}
}
