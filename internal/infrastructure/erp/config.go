package erp

import (
	"errors"
	"net/url"
	"strings"
)

// Config holds the connection settings of the Odoo JSON-RPC endpoint.
type Config struct {
	// BaseURL is the Odoo server root, e.g. http://odoo:8069
	BaseURL string
	// Database is the Odoo database name
	Database string
	// Username is the login of the integration user
	Username string
	// Password is the password or API key of the integration user
	Password string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxResponseBytes caps the size of a response body
	MaxResponseBytes int64
}

// Errors for ERP configuration
var (
	ErrConfigMissingURL      = errors.New("erp: base url is required")
	ErrConfigInvalidURL      = errors.New("erp: base url is invalid")
	ErrConfigMissingDatabase = errors.New("erp: database is required")
	ErrConfigMissingUsername = errors.New("erp: username is required")
	ErrConfigMissingPassword = errors.New("erp: password is required")
)

const (
	defaultTimeoutSeconds   = 30
	defaultMaxResponseBytes = 10 << 20
)

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrConfigInvalidURL
	}
	if c.Database == "" {
		return ErrConfigMissingDatabase
	}
	if c.Username == "" {
		return ErrConfigMissingUsername
	}
	if c.Password == "" {
		return ErrConfigMissingPassword
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return nil
}

// Endpoint returns the JSON-RPC URL.
func (c *Config) Endpoint() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/jsonrpc"
}
