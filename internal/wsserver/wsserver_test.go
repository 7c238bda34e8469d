package wsserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsakeyfut/reversi/internal/codec"
	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/logging"
)

type stubCoordinator struct{}

func (stubCoordinator) Connect(sessionID, username string, mailbox codec.Mailbox) error { return nil }
func (stubCoordinator) Disconnect(sessionID string)                                     {}
func (stubCoordinator) Intent(sessionID string, msg codec.ClientMessage) error           { return nil }

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := conf.Default
	logger, err := logging.Open(t.TempDir()+"/test.log", false)
	if err != nil {
		t.Fatalf("opening test logger: %v", err)
	}
	t.Cleanup(logger.Close)
	return New(stubCoordinator{}, logger, &cfg)
}

func TestHealthEndpoint(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Healthy!", rec.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestUnknownRouteNotFound(t *testing.T) {
	handler := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
