package postgres

import (
	"fmt"
	"time"
)

// Config holds PostgreSQL connection settings for the driver.
// Prefer providing a DSN via ConnString. When empty, a DSN will be
// synthesized from the individual fields.
type Config struct {
	ConnString  string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	PingTimeout time.Duration
}

// DSN returns the connection string, synthesizing one from the individual
// fields when ConnString is empty.
func (c *Config) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode,
	)
}
