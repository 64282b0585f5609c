package farmapi

import (
	"time"

	"github.com/go-resty/resty/v2"

	"furrow/internal/config"
)

const userAgent = "Furrow-Go/0.1.0"

// Client talks to the farm operations API. The bearer token is attached as
// configured; token refresh happens outside this package.
type Client struct {
	http          *resty.Client
	uploadTimeout time.Duration
	statusTimeout time.Duration
}

// New constructs a client from application config.
func New(cfg *config.Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.API.BaseURL).
		SetAuthToken(cfg.API.Token).
		SetHeader("User-Agent", userAgent)

	return &Client{
		http:          http,
		uploadTimeout: time.Duration(cfg.API.UploadTimeout) * time.Second,
		statusTimeout: time.Duration(cfg.API.StatusTimeout) * time.Second,
	}
}
