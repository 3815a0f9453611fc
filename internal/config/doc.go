// Package config loads and watches the forwarder configuration file.
//
// Top-level types:
//   - Config{Forwarder, Checks, Log}: full config tree parsed from YAML
//   - ForwarderConfig: listen_port, endpoint, check/poll/flush intervals,
//     send_timeout, compress, auth; IntakeURL(), ListenAddr() and
//     LocalURL() derive the remote and loopback intake addresses
//   - AuthConfig: mode (apikey|none), header, key_env; Key() resolves the
//     key from the environment
//   - ChecksConfig: per-run timeout plus prometheus and tls check lists,
//     read by the check process
//   - LogConfig: level and optional log file
//
// Load(path) reads the YAML file, applies defaults (port 17123, 60s checks,
// 1s process poll, 5s flush, 10s send timeout), then validates required
// fields and enums.
//
// Watch(ctx, path, onChange) watches the file's directory with fsnotify and
// calls onChange with the newly parsed Config after each save.
package config
