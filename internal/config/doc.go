// Package config loads and watches the meshwatch configuration file.
//
// Top-level types:
//   - Config{Dashboard, Services}: full config tree parsed from YAML
//   - DashboardConfig: poll_interval, probe_timeout, request_timeout,
//     activity_limit (4-6), late_probe_policy (discard|accept),
//     always_active, http_port
//   - Service: key (agent|workflow|monitoring|communication), name, base_url,
//     base_url_env, health_path, auth, tls
//   - AuthConfig: mode (apikey|bearer|basic|none) with secrets resolved from
//     environment variables named by key_env, token_env and password_env
//
// Load(path) reads the YAML file, applies defaults (5s poll, 10s request
// timeout, 5 activity entries, port 8080, /health), then validates required
// fields and enums. Base URLs are validated after the base_url_env override
// is applied.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. A reload that fails validation is
// logged and skipped.
package config
