package apikey

import "time"

// Config holds the key-management service settings.
type Config struct {
	// BaseURL is the key-management API root.
	BaseURL string `env:"AUTHAPI_BASE_URL" envDefault:"https://theauthapi-stage-lrjkgxnoba-uc.a.run.app"`

	// ProjectID scopes every lookup and create.
	ProjectID string `env:"AUTHAPI_PROJECT_ID"`

	// AccessKey is sent as the x-api-key header on every upstream call.
	AccessKey string `env:"AUTHAPI_ACCESS_KEY"`

	// Timeout bounds a single upstream call.
	Timeout time.Duration `env:"AUTHAPI_TIMEOUT" envDefault:"10s"`
}

// Missing returns the names of unset settings the upstream will reject.
// Resolution still runs without them; calls simply fail upstream.
func (c Config) Missing() []string {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "AUTHAPI_PROJECT_ID")
	}
	if c.AccessKey == "" {
		missing = append(missing, "AUTHAPI_ACCESS_KEY")
	}
	return missing
}
