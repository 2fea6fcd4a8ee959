// Package cmd holds the leakhunt commands.
//
// # Commands
//
// leakhunt: the single binary. It runs hunts in the foreground, serves the
// HTTP control API and manages the session history.
//
//	go run ./cmd/leakhunt init-config
//	go run ./cmd/leakhunt check
//	go run ./cmd/leakhunt run --guild=123 --roles=456 --leak-channel=789 --probe-channel=1011
//	go run ./cmd/leakhunt serve --addr=127.0.0.1:8080
//	go run ./cmd/leakhunt simulate --members=64 --leaker=17
//	go run ./cmd/leakhunt history
//
// # Configuration
//
// Every command reads leakhunt.yaml from the working directory, or the file
// given with --config. LEAKHUNT_* environment variables override it, and
// command-line flags override both.
//
//	discord:
//	  token: ""
//	  listener_token: ""   # optional second account watching the leak channel
//	proxy:
//	  enabled: false
//	  scheme: http         # http, https or socks5
//	  host: 127.0.0.1
//	  port: 7897
//	hunt:
//	  guild_id: ""
//	  role_ids: []
//	  leak_channel_id: ""
//	  probe_channel_id: ""
//	  webhook_url: ""      # posts probes anonymously when set
//	  probe_template: "leak check {nonce}"
//	  timeout_seconds: 10
//	  settle_delay: 1s
//	store:
//	  driver: sqlite       # memory, sqlite or postgres
//	  sqlite_path: leakhunt.db
//
// # Control API
//
// The serve command exposes start, stop and status endpoints under /api and
// streams progress as Server-Sent Events from /api/events. /livez, /readyz,
// /drain and /undrain behave as usual; a drained server refuses new hunts.
package cmd
