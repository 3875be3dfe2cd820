package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8081
  mode: development
db:
  driver: sqlite
  path: ./test.db
auth:
  jwt_secret: "0123456789abcdef-test"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("STAFF_DB_QUERY_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 5, cfg.RateLimit.Login.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Login.Window)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 3000},
			Database: DatabaseConfig{Driver: "sqlite", QueryTimeout: time.Second},
			Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"合法配置", func(c *Config) {}, false},
		{"密钥为空", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, true},
		{"未知驱动", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"超时为 0", func(c *Config) { c.Database.QueryTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable", Timezone: "UTC"}
	assert.Contains(t, pg.DSN(), "host=db")

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Contains(t, my.DSN(), "tcp(db:3306)/n")

	lite := DatabaseConfig{Driver: "sqlite", Path: "x.db"}
	assert.Contains(t, lite.DSN(), "x.db?")
}
