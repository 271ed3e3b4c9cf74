package config

// SampleConfig returns a fully commented configuration file.
func SampleConfig() string {
	return `# nginx-config-viewer configuration
version: "1.0"

server:
  # Listen address for the HTTP server
  addr: ":8080"
  # The nginx configuration file to serve at /raw
  path: "/etc/nginx/nginx.conf"
  # Send Access-Control-Allow-Origin: * on /raw
  cors: false
  # Quiet period after the last file event before "reload" is pushed
  debounce: 200ms
  # Interval of the ": ping" comment on /events
  heartbeat: 30s
  # Reconnect delay sent to /events clients as "retry:" (0: keep theirs)
  retry: 0s
  # Signals queued per /events client before new ones are dropped
  client_buffer: 8
  shutdown_timeout: 5s

viewer:
  # Base URL of a running "nginx-config-viewer serve"
  url: "http://localhost:8080"
  # Ambient color attribute: dark, light, or empty (empty renders dark)
  color_mode: ""
  # Delay before reconnecting a dropped /events stream
  retry_delay: 3s
  # Log file used while the terminal viewer is running (empty: discard)
  log_file: ""

output:
  # auto, always, never
  color_mode: auto
  verbose: false
`
}

// MinimalSampleConfig returns a configuration with only the settings most
// people change.
func MinimalSampleConfig() string {
	return `version: "1.0"
server:
  addr: ":8080"
  path: "/etc/nginx/nginx.conf"
viewer:
  url: "http://localhost:8080"
`
}
