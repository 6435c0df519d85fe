//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/liamcoop/premium/predictions"
	"github.com/liamcoop/premium/premium"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
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

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_create_predictions.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return db, cleanup
}

// TestEndToEnd_PredictAndAudit tests the complete workflow:
// 1. Predict a premium
// 2. Read the audit entry back from Postgres
// 3. Check the health endpoint reports the database
func TestEndToEnd_PredictAndAudit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	pipeline, err := premium.Load("", premium.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to load pipeline: %v", err)
	}
	server := NewServer(testConfig(), pipeline, predictions.NewPostgresStore(db), nil)

	ts := httptest.NewServer(server)
	defer ts.Close()
	baseURL := ts.URL + "/api/v1"

	t.Log("Step 1: Predicting premium...")
	predResp := makeRequest(t, "POST", baseURL+"/predict?explain=true", exampleApplicant())
	if predResp["predicted_premium"].(float64) != 11500 {
		t.Errorf("Expected premium 11500, got %v", predResp["predicted_premium"])
	}
	predictionID, ok := predResp["prediction_id"].(string)
	if !ok || predictionID == "" {
		t.Fatalf("Expected prediction_id, got %v", predResp)
	}

	t.Log("Step 2: Reading audit entry...")
	record := makeRequestNoBody(t, "GET", baseURL+"/predictions/"+predictionID)
	if record["segment"] != "rest" {
		t.Errorf("Expected segment rest, got %v", record["segment"])
	}
	input := record["input"].(map[string]interface{})
	if input["insurance_plan"] != "Gold" {
		t.Errorf("Expected stored input plan Gold, got %v", input["insurance_plan"])
	}

	list := makeRequestNoBody(t, "GET", baseURL+"/predictions?limit=5")
	if list["count"].(float64) != 1 {
		t.Errorf("Expected 1 audit entry, got %v", list["count"])
	}

	t.Log("Step 3: Checking health...")
	health := makeRequestNoBody(t, "GET", baseURL+"/health")
	if health["audit"] != "postgres" {
		t.Errorf("Expected postgres audit, got %v", health["audit"])
	}
}

// TestEndToEnd_RejectedRecordsAreNotAudited verifies that a 400 leaves no
// audit entry behind
func TestEndToEnd_RejectedRecordsAreNotAudited(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	pipeline, err := premium.Load("", premium.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to load pipeline: %v", err)
	}
	ts := httptest.NewServer(NewServer(testConfig(), pipeline, predictions.NewPostgresStore(db), nil))
	defer ts.Close()

	body := exampleApplicant()
	body["age"] = 17
	resp, err := makeHTTPRequest("POST", ts.URL+"/predict", body)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 Bad Request, got %d", resp.StatusCode)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		t.Fatalf("Failed to count predictions: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no audit entries, got %d", count)
	}
}

// Helper function to make HTTP requests with JSON body
func makeRequest(t *testing.T, method, url string, body interface{}) map[string]interface{} {
	resp, err := makeHTTPRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to make %s request to %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return result
}

// Helper function to make HTTP requests without body
func makeRequestNoBody(t *testing.T, method, url string) map[string]interface{} {
	return makeRequest(t, method, url, nil)
}

// Helper function to make raw HTTP request
func makeHTTPRequest(method, url string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}
