package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestBuildOptionsNative(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("ch"),
		WithDatabase("tradedesk"),
		WithCredentials("", "secret"),
		WithMaxExecutionTime(30 * time.Second),
		WithAsyncInsert(true, false),
		WithMaxConnections(20, 0),
	} {
		opt(cfg)
	}
	o := buildOptions(cfg)

	assert.Equal(t, []string{"ch:9000"}, o.Addr)
	assert.Equal(t, clickhouse.Native, o.Protocol)
	assert.Equal(t, clickhouse.Auth{Database: "tradedesk", Username: "default", Password: "secret"}, o.Auth)
	assert.Equal(t, clickhouse.Settings{"max_execution_time": 30, "async_insert": 1}, o.Settings)
	assert.Equal(t, 20, o.MaxOpenConns)
	assert.Equal(t, 5, o.MaxIdleConns)
}

func TestBuildOptionsHTTP(t *testing.T) {
	cfg := defaultConfig()
	WithHost("ch")(cfg)
	WithHTTP(true)(cfg)
	WithAsyncInsert(true, true)(cfg)
	WithTimeouts(0, 3*time.Second)(cfg)
	o := buildOptions(cfg)

	assert.Equal(t, []string{"ch:8123"}, o.Addr)
	assert.Equal(t, clickhouse.HTTP, o.Protocol)
	assert.Equal(t, clickhouse.Settings{"async_insert": 1, "wait_for_async_insert": 1}, o.Settings)
	assert.Equal(t, 5*time.Second, o.DialTimeout)
	assert.Equal(t, 3*time.Second, o.ReadTimeout)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
