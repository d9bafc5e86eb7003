package contracts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	guaranteeApp "github.com/davicafu/customsflow/internal/guarantee/application"
	"github.com/davicafu/customsflow/tests/mocks"
)

// env agrupa las dependencias en memoria que comparten los contratos.
type env struct {
	clock      *mocks.FakeClock
	outbox     *mocks.InMemoryOutbox
	uow        *mocks.InMemoryUnitOfWork
	cache      *mocks.DummyCache
	guarantees *guaranteeApp.GuaranteeService
}

func newEnv() env {
	clock := mocks.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	outbox := mocks.NewInMemoryOutbox(clock)
	uow := mocks.NewInMemoryUnitOfWork(outbox)
	c := mocks.NewDummyCache()
	return env{
		clock:      clock,
		outbox:     outbox,
		uow:        uow,
		cache:      c,
		guarantees: guaranteeApp.NewGuaranteeService(mocks.NewInMemoryAccountRepo(), uow, c, time.Minute, clock, zap.NewNop()),
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// errorBody es el formato estándar de error de la API.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
