package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PPLive/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type switchable struct{ err error }

func (s *switchable) Ping(context.Context) error { return s.err }

func grpcStatus(t *testing.T, c *Checker) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Server().Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.Status
}

func healthz(t *testing.T, c *Checker) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", c.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestPresenceStoreOutageKeepsServing(t *testing.T) {
	pg, rd := &switchable{}, &switchable{err: errors.New("connection refused")}
	c := NewChecker(Config{Timeout: 100 * time.Millisecond},
		map[string]Pinger{"postgres": pg}, map[string]Pinger{"redis": rd})

	require.True(t, c.Check(context.Background()))
	require.Equal(t, map[string]string{"redis": "connection refused"}, c.Failing())
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, grpcStatus(t, c))

	code, body := healthz(t, c)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "degraded", body["status"])
	require.Equal(t, []any{"redis"}, body["failing"])
}

func TestLedgerOutageStopsServing(t *testing.T) {
	pg, rd := &switchable{}, &switchable{}
	c := NewChecker(Config{}, map[string]Pinger{"postgres": pg}, map[string]Pinger{"redis": rd})

	require.True(t, c.Check(context.Background()))
	code, body := healthz(t, c)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	pg.err = errors.New("too many connections")
	require.False(t, c.Check(context.Background()))
	require.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, grpcStatus(t, c))
	code, body = healthz(t, c)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "down", body["status"])

	pg.err = nil
	require.True(t, c.Check(context.Background()))
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, grpcStatus(t, c))
}

func TestStatusChangeIsLoggedWhenFailingSetSwaps(t *testing.T) {
	prev := logger.L()
	t.Cleanup(func() { logger.Replace(prev) })
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Replace(zap.New(core))

	pg, rd := &switchable{}, &switchable{err: errors.New("down")}
	c := NewChecker(Config{}, map[string]Pinger{"postgres": pg}, map[string]Pinger{"redis": rd})
	c.Check(context.Background())
	c.Check(context.Background())
	require.Equal(t, 1, logs.FilterMessage("[Health] status").Len(), "unchanged set is not logged again")

	pg.err, rd.err = errors.New("down"), nil
	c.Check(context.Background())
	require.Equal(t, 2, logs.FilterMessage("[Health] status").Len())
	require.Equal(t, map[string]string{"postgres": "down"}, c.Failing())
}

func TestSameKeys(t *testing.T) {
	require.True(t, sameKeys(map[string]string{}, nil))
	require.True(t, sameKeys(map[string]string{"a": "x"}, map[string]string{"a": "y"}))
	require.False(t, sameKeys(map[string]string{"redis": ""}, map[string]string{"postgres": ""}))
}

func TestServeAnswersGrpcHealth(t *testing.T) {
	c := NewChecker(Config{}, nil, nil)
	c.Check(context.Background())

	srv, addr, err := Serve("127.0.0.1:0", c.Server())
	require.NoError(t, err)
	defer srv.Stop()

	conn, err := grpc.Dial(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
