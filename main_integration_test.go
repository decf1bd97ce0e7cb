package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joho/godotenv"
)

const (
	testAppBinary  = "./devbills_test_app" // Name for the test binary
	testAppPort    = "8089"                // Port for the test server
	testAppURL     = "http://localhost:" + testAppPort
	testDbName     = "devbills_integration_test"
	startupTimeout = 15 * time.Second
	pingEndpoint   = testAppURL + "/v1/ping"
)

// TestMain manages the setup and teardown of the integration test environment.
func TestMain(m *testing.M) {
	defer func() {
		log.Println("Integration Test Teardown: Cleaning up test binary...")
		_ = os.Remove(testAppBinary)
	}()

	log.Println("Integration Test Setup: Building application...")
	godotenv.Load()
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Build successful: %s", testAppBinary)

	// Seed the unique indexes the duplicate checks rely on
	if seedErr := seedTestData(); seedErr != nil {
		log.Printf("Failed to seed test data: %v", seedErr)
		os.Exit(1)
	}
	defer cleanupTestData()

	// --- Start API + Background Worker Process ---
	appCmd := exec.Command(testAppBinary, "-m", "all")
	appCmd.Env = append(os.Environ(),
		"API_PORT="+testAppPort,
		"MONGO_URI="+mongoTestURI(),
		"MONGO_DB_NAME="+testDbName,
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"RATE_LIMIT_SOFT_BUCKET_SIZE=100",
		"RATE_LIMIT_SOFT_REFILL_RATE=100",
		"RATE_LIMIT_HARD_BUCKET_SIZE=200",
		"RATE_LIMIT_HARD_REFILL_RATE=200",
		"REDIS_ADDR=localhost:6379",
	)
	appCmd.Stderr = os.Stderr
	appCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting application process...")
	if err := appCmd.Start(); err != nil {
		log.Printf("Failed to start application process: %v", err)
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Application process started (PID: %d)...", appCmd.Process.Pid)

	defer func() {
		log.Println("Integration Test Teardown: Shutting down application process...")
		if processErr := appCmd.Process.Signal(syscall.SIGTERM); processErr != nil {
			log.Printf("Integration Test Teardown: Failed to send SIGTERM: %v. Killing.", processErr)
			_ = appCmd.Process.Kill()
		} else {
			_, waitErr := appCmd.Process.Wait()
			if waitErr != nil && waitErr.Error() != "signal: killed" && waitErr.Error() != "exit status 1" {
				log.Printf("Integration Test Teardown: Error waiting for process exit: %v", waitErr)
			}
		}
		log.Println("Integration Test Teardown: Application process stopped.")
	}()

	// Wait for the API to be ready by polling the ping endpoint
	log.Printf("Integration Test Setup: Waiting for API to become ready at %s...", pingEndpoint)
	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil && resp.StatusCode == http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if string(bodyBytes) == "pong" {
				log.Println("Integration Test Setup: Application is ready!")
				ready = true
				break
			}
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		os.Exit(1)
	}

	log.Println("Integration Test Setup: Running tests...")
	exitCode := m.Run()
	log.Printf("Integration Test Teardown: Tests finished with exit code %d.", exitCode)
	// Let TestMain return normally so the deferred teardown runs.
}

func mongoTestURI() string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

// seedTestData creates the unique indexes the application expects operationally.
func seedTestData() error {
	log.Println("Seeding test data...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoTestURI()))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB for seeding: %w", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting seeding client: %v", err)
		}
	}()

	db := client.Database(testDbName)
	if err := db.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop stale test database: %w", err)
	}

	_, err = db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_1"),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	_, err = db.Collection("invoices").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "invoiceNumber", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("invoiceNumber_1"),
	})
	if err != nil {
		return fmt.Errorf("failed to create invoices number index: %w", err)
	}

	log.Println("Test data seeded.")
	return nil
}

func cleanupTestData() {
	log.Println("Cleaning up test data...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoTestURI()))
	if err != nil {
		log.Printf("Failed to connect to MongoDB for cleanup: %v", err)
		return
	}
	defer client.Disconnect(ctx)

	if err := client.Database(testDbName).Drop(ctx); err != nil {
		log.Printf("Failed to drop test database: %v", err)
	}
}

func postJSON(t *testing.T, path, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", testAppURL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &decoded), "response body: %s", string(body))
	}
	return resp, decoded
}

func getJSON(t *testing.T, path, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest("GET", testAppURL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &decoded), "response body: %s", string(body))
	}
	return resp, decoded
}

// setupLoggedInUser registers a throwaway account and returns its JWT.
func setupLoggedInUser(t *testing.T) (email, token string) {
	t.Helper()
	email = fmt.Sprintf("testuser_%d@example.com", time.Now().UnixNano())

	resp, body := postJSON(t, "/v1/auth/register", "", map[string]interface{}{
		"name":     "Integration Tester",
		"email":    email,
		"password": "StrongP@ssw0rd123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register response: %v", body)

	token, ok := body["token"].(string)
	require.True(t, ok, "register response missing token: %v", body)
	require.NotEmpty(t, token)
	return email, token
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	assert.NoError(t, err, "Request to %s should not fail", pingEndpoint)
	if err != nil {
		t.FailNow()
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bodyBytes, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Equal(t, "pong", string(bodyBytes))
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	email, _ := setupLoggedInUser(t)

	// A second registration with the same email must be rejected.
	resp, body := postJSON(t, "/v1/auth/register", "", map[string]interface{}{
		"name":     "Impostor",
		"email":    email,
		"password": "AnotherP@ss123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, fmt.Sprint(body["error"]), "already exists")

	// Login with the right credentials
	resp, body = postJSON(t, "/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "StrongP@ssw0rd123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	// And with the wrong ones
	resp, _ = postJSON(t, "/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "WrongPassword1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_ComputeTotals(t *testing.T) {
	resp, body := postJSON(t, "/v1/invoices/totals", "", map[string]interface{}{
		"items": []map[string]interface{}{
			{"description": "Wiring", "quantity": 2, "rate": 100},
			{"description": "Switchboard", "quantity": 1, "rate": 50},
		},
		"tax": map[string]interface{}{"cgst": 9, "sgst": 9},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "totals response: %v", body)

	assert.InDelta(t, 250, body["subtotal"], 0.0001)
	assert.InDelta(t, 22.5, body["cgst_amount"], 0.0001)
	assert.InDelta(t, 22.5, body["sgst_amount"], 0.0001)
	assert.InDelta(t, 295, body["total"], 0.0001)
}

func TestIntegration_InvoiceLifecycle(t *testing.T) {
	_, token := setupLoggedInUser(t)

	number := fmt.Sprintf("INV-IT-%d", time.Now().UnixNano())
	resp, body := postJSON(t, "/v1/invoices", token, map[string]interface{}{
		"invoiceNumber": number,
		"toName":        "Sharma Traders",
		"items": []map[string]interface{}{
			{"description": "Cable run", "quantity": 3, "rate": 10},
		},
		"tax": map[string]interface{}{"cgst": 9, "sgst": 9},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "save response: %v", body)

	invoiceID, _ := body["id"].(string)
	require.NotEmpty(t, invoiceID, "save response missing id: %v", body)
	assert.InDelta(t, 35.4, body["total"], 0.0001)

	// Duplicate invoice number is rejected
	resp, _ = postJSON(t, "/v1/invoices", token, map[string]interface{}{
		"invoiceNumber": number,
		"toName":        "Sharma Traders",
		"items": []map[string]interface{}{
			{"description": "Cable run", "quantity": 3, "rate": 10},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// History shows the invoice, and the search filter finds it by counterpart
	resp, body = getJSON(t, "/v1/invoices/history?q="+url.QueryEscape("sharma trad"), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	invoices, _ := body["invoices"].([]interface{})
	require.NotEmpty(t, invoices)

	// The same listing is reachable without a token
	resp, body = getJSON(t, "/v1/invoices/history?q="+url.QueryEscape(number), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	invoices, _ = body["invoices"].([]interface{})
	require.NotEmpty(t, invoices)

	// Deleting requires auth and removes it from history
	req, err := http.NewRequest("DELETE", testAppURL+"/v1/invoices/"+invoiceID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	resp, body = getJSON(t, "/v1/invoices/history?q="+url.QueryEscape(number), token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	invoices, _ = body["invoices"].([]interface{})
	assert.Empty(t, invoices)
}

func TestIntegration_GuestSessionState(t *testing.T) {
	sessionKey := fmt.Sprintf("it-session-%d", time.Now().UnixNano())

	do := func(method, path string, payload interface{}) (*http.Response, map[string]interface{}) {
		var reader io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, testAppURL+path, reader)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Session-Key", sessionKey)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		var decoded map[string]interface{}
		if len(body) > 0 {
			require.NoError(t, json.Unmarshal(body, &decoded), "response body: %s", string(body))
		}
		return resp, decoded
	}

	// Products start empty for a fresh session
	resp, body := do("GET", "/v1/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products, _ := body["products"].([]interface{})
	assert.Empty(t, products)

	// Add one and read it back
	resp, body = do("POST", "/v1/products", map[string]interface{}{
		"description": "MCB 16A", "rate": 120, "stock": 40,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	products, _ = body["products"].([]interface{})
	assert.Len(t, products, 1)

	// Preview is absent until stored
	resp, _ = do("GET", "/v1/preview", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Store a preview; totals come back recomputed on the server
	resp, body = do("PUT", "/v1/preview", map[string]interface{}{
		"invoiceNumber": "PREVIEW-1",
		"customerName":  "Gupta & Sons",
		"items": []map[string]interface{}{
			{"description": "Service call", "quantity": 1, "rate": 250},
		},
		"tax": map[string]interface{}{"cgst": 9, "sgst": 9},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "preview response: %v", body)
	totals, _ := body["totals"].(map[string]interface{})
	require.NotNil(t, totals)
	assert.InDelta(t, 295, totals["total"], 0.0001)

	resp, body = do("GET", "/v1/preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Gupta & Sons", body["customerName"])
}

func TestIntegration_ShopSettings(t *testing.T) {
	_, token := setupLoggedInUser(t)

	resp, body := getJSON(t, "/v1/shop", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Shop", body["name"])

	data, err := json.Marshal(map[string]interface{}{"name": "Dev Electricals"})
	require.NoError(t, err)
	req, err := http.NewRequest("PUT", testAppURL+"/v1/shop", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	resp, body = getJSON(t, "/v1/shop", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dev Electricals", body["name"])
}
