package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func mustProduct(t *testing.T, db *sql.DB, sku, price string) *models.Product {
	t.Helper()
	p, err := CreateProduct(context.Background(), db, CreateProductRequest{
		SKU:      sku,
		Name:     "Product " + sku,
		Category: "whisky",
		Brand:    "Acme",
		Price:    decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", sku, err)
	}
	return p
}

// mustBatch receives qty units expiring in days days; days < 0 creates an
// already expired batch.
func mustBatch(t *testing.T, db *sql.DB, productID int64, number string, qty, days int, cost string) *models.Batch {
	t.Helper()
	exp := time.Now().UTC().AddDate(0, 0, days)
	b, err := CreateBatch(context.Background(), db, CreateBatchRequest{
		ProductID:   productID,
		BatchNumber: number,
		ExpiresAt:   &exp,
		Quantity:    qty,
		UnitCost:    decimal.RequireFromString(cost),
	})
	if err != nil {
		t.Fatalf("Create batch %s: %v", number, err)
	}
	return b
}

func mustCustomer(t *testing.T, db *sql.DB, email string, level models.MembershipLevel, vip bool) *models.Customer {
	t.Helper()
	c, err := CreateCustomer(context.Background(), db, CreateCustomerRequest{
		Name:            "Customer " + email,
		Email:           email,
		MembershipLevel: level,
		IsVIP:           vip,
	})
	if err != nil {
		t.Fatalf("Create customer %s: %v", email, err)
	}
	return c
}
