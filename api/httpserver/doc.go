// Package httpserver provides the HTTP server that hosts the leak hunt
// control API.
//
// BaseServer wires chi with request ids, real ip extraction, panic recovery
// and slog request logging, and adds the operational endpoints:
//
//   - /livez: the process is up
//   - /readyz: the server accepts new sessions
//   - /drain, /undrain: toggle readiness ahead of a restart
//   - /debug/pprof: when EnablePprof is set
//
// Components plug in by implementing RouteRegistrar:
//
//	srv, err := httpserver.New(cfg, huntService)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
//
// A draining server still serves status and event requests so that a running
// session can be watched and stopped, but Ready reports false and the hunt
// service refuses to start new sessions.
package httpserver
