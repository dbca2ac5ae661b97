package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/echostudy/api/internal/auth"
	"github.com/echostudy/api/internal/client"
	"github.com/echostudy/api/internal/config"
	"github.com/echostudy/api/internal/handler"
	"github.com/echostudy/api/internal/middleware"
	"github.com/echostudy/api/internal/model"
	"github.com/echostudy/api/internal/service"
	"github.com/echostudy/api/internal/store"
	"github.com/echostudy/api/internal/worker"
	"github.com/echostudy/api/pkg/response"
)

const (
	testJWTSecret   = "test-secret-for-e2e"
	testWorkerToken = "test-worker-token"
	testUserID      = "test-user-123"
)

// deepgramSuccessBody is the canned provider response used unless a test
// overrides it.
const deepgramSuccessBody = `{
	"metadata": {"request_id": "req-e2e", "duration": 3.2, "model_info": {"abc": {"name": "nova-3"}}},
	"results": {
		"channels": [{
			"alternatives": [{"transcript": "hello world", "confidence": 0.98}],
			"detected_language": "en"
		}],
		"summary": {"result": "A greeting."}
	}
}`

// fakeStorage is an in-memory StorageClient shared by uploads and the worker.
type fakeStorage struct {
	files map[string][]byte
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, &client.BlobAccessError{Key: key, Err: fmt.Errorf("no such key")}
	}
	return data, nil
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.files[key] = data
	return key, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	delete(f.files, key)
	return nil
}

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://public.example/" + key
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	jobs     *store.JobStore
	lectures *store.LectureStore
	storage  *fakeStorage

	// Deepgram stub response; tests may override before invoking the worker.
	deepgramStatus int
	deepgramBody   string
}

// setupApp creates a Fiber app identical to main.go but with an in-memory
// database, a fake blob store and a stubbed Deepgram endpoint.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := store.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	ta := &testApp{
		storage:        &fakeStorage{files: make(map[string][]byte)},
		deepgramStatus: http.StatusOK,
		deepgramBody:   deepgramSuccessBody,
	}

	// Stubbed Deepgram endpoint
	deepgramServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(ta.deepgramStatus)
		w.Write([]byte(ta.deepgramBody))
	}))
	t.Cleanup(deepgramServer.Close)

	// Redis (localhost — rate limiting degrades to allow-all if unavailable)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	validate := validator.New()

	deepgramClient := client.NewDeepgramClient(&config.DeepgramConfig{
		APIKey:   "test-key",
		BaseURL:  deepgramServer.URL,
		Model:    "nova-3",
		Language: "en",
	})

	// Stores, services and the worker
	ta.jobs = store.NewJobStore(db)
	ta.lectures = store.NewLectureStore(db)
	transcriptionService := service.NewTranscriptionService(ta.jobs, ta.lectures)
	uploadService := service.NewUploadService(ta.storage)
	transcriptionWorker := worker.NewTranscriptionWorker(ta.jobs, ta.lectures, deepgramClient, ta.storage)

	// Handlers
	transcriptionHandler := handler.NewTranscriptionHandler(transcriptionService, validate)
	lectureHandler := handler.NewLectureHandler(transcriptionService)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	workerHandler := handler.NewWorkerHandler(transcriptionWorker, testWorkerToken, 3)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware — legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return response.Error(c, code, message)
		},
		BodyLimit: 100 * 1024 * 1024,
	})

	// Base routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"deepgram": true,
				"r2":       true,
				"auth":     true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)
	app.Post("/internal/worker/run", workerHandler.Run)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	api.Post("/transcriptions", rateLimiter.TranscribeLimit(10000), transcriptionHandler.Enqueue)
	api.Get("/transcriptions/:jobId", transcriptionHandler.Status)
	api.Get("/lectures/:lectureId", lectureHandler.Get)

	uploads := api.Group("/uploads", rateLimiter.UploadLimit(10000))
	uploads.Post("/audio", uploadHandler.Audio)
	uploads.Delete("/audio/*", uploadHandler.DeleteAudio)

	ta.app = app
	return ta
}

// seedLecture inserts a lecture owned by the default test user and returns it.
func (ta *testApp) seedLecture(t *testing.T) *model.Lecture {
	t.Helper()
	lecture := &model.Lecture{
		ID:     uuid.New().String(),
		UserID: testUserID,
		Title:  "Signals and Systems, Lecture 2",
	}
	if err := ta.lectures.Create(context.Background(), lecture); err != nil {
		t.Fatalf("failed to seed lecture: %v", err)
	}
	return lecture
}

// seedAudio puts audio bytes into the fake blob store under the given key.
func (ta *testApp) seedAudio(key string) {
	ta.storage.files[key] = []byte("fake audio bytes")
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.SignLegacyToken(testUserID, "test@example.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
