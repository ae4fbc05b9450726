package health

import (
	"context"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"PPLive/logger"
	"PPLive/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the grpc health service name reported alongside "".
const ServiceName = "pplive.gateway"

// Pinger is any dependency that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Interval time.Duration // probe interval
	Timeout  time.Duration // per-probe timeout
}

// Checker probes dependencies on an interval and mirrors the result into a
// grpc health server and the /healthz handler. Only critical probes decide
// SERVING; a failing degraded probe (the presence store) is reported but
// leaves the gateway in rotation.
type Checker struct {
	cfg      Config
	hs       *health.Server
	critical map[string]Pinger
	degraded map[string]Pinger

	mu      sync.RWMutex
	failing map[string]string
	down    bool
	checked bool
}

func NewChecker(cfg Config, critical, degraded map[string]Pinger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Checker{
		cfg:      cfg,
		hs:       health.NewServer(),
		critical: critical,
		degraded: degraded,
		failing:  make(map[string]string),
	}
}

func (c *Checker) Server() *health.Server { return c.hs }

func (c *Checker) probe(ctx context.Context, probes map[string]Pinger, failing map[string]string) bool {
	ok := true
	for name, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		if err := p.Ping(pctx); err != nil {
			failing[name] = err.Error()
			ok = false
		}
		cancel()
	}
	return ok
}

// Check runs every probe once and updates the serving status. It reports
// whether every critical probe passed.
func (c *Checker) Check(ctx context.Context) bool {
	failing := make(map[string]string)
	serving := c.probe(ctx, c.critical, failing)
	c.probe(ctx, c.degraded, failing)

	c.mu.Lock()
	changed := !c.checked || !sameKeys(failing, c.failing)
	c.failing = failing
	c.down = !serving
	c.checked = true
	c.mu.Unlock()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	c.hs.SetServingStatus("", status)
	c.hs.SetServingStatus(ServiceName, status)
	if changed {
		logger.Info("[Health] status", zap.String("status", status.String()), zap.Any("failing", failing))
	}
	return serving
}

func sameKeys(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Run probes until ctx ends, then marks everything NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	c.Check(ctx)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.hs.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Failing maps each probe that failed last round to its error.
func (c *Checker) Failing() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.failing))
	for k, v := range c.failing {
		out[k] = v
	}
	return out
}

// Handler serves /healthz: 200 "ok" when every probe passed, 200 "degraded"
// when only degraded probes fail, 503 "down" when a critical probe fails.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.mu.RLock()
		down := c.down
		c.mu.RUnlock()
		failing := c.Failing()
		if len(failing) == 0 {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		names := make([]string, 0, len(failing))
		for name := range failing {
			names = append(names, name)
		}
		sort.Strings(names)
		code, status := http.StatusOK, "degraded"
		if down {
			code, status = http.StatusServiceUnavailable, "down"
		}
		ctx.JSON(code, gin.H{"status": status, "failing": names, "errors": failing})
	}
}

// Serve registers the health service on a new grpc server listening on addr.
func Serve(addr string, hs *health.Server) (*grpc.Server, net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	safe.Go("grpc-health", func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error("[Health] grpc serve stopped", zap.Error(err))
		}
	})
	return srv, lis.Addr(), nil
}
