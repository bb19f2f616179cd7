package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	ServiceName string
}
