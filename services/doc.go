/*
# Leak Hunt Services Package

The services package puts the hunt controller behind an HTTP control API and
keeps a history of finished sessions.

## Components

1. **HuntService** (`hunt_service.go`)
  - Owns one `hunt.Controller` bound to one platform connection
  - Endpoints:
  - `POST /api/session` - Start a session (202, 409 while one runs, 400 on bad config, 503 while draining)
  - `POST /api/session/stop` - Stop and roll back; safe in any phase
  - `GET /api/session` - Phase, round counters, history, result or error
  - `GET /api/events` - SSE stream of progress, result, error and stopped events
  - `GET /api/sessions` - Finished sessions, newest first (`?limit=n`)
  - `GET /api/sessions/{id}` - One finished session

2. **HistoryStore** (`store.go`)
  - `InMemoryStore` for tests and throwaway runs
  - `SQLiteStore` on a local file through the pure Go driver
  - `PostgresStore` for shared deployments

## Event stream

Each SSE frame is `event: <kind>` followed by the JSON encoded `hunt.Event`.
A new subscriber first receives a `status` frame with the current snapshot.
Slow subscribers lose progress frames rather than stalling the session.
*/
package services
