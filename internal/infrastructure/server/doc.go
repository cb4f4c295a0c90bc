// Package server assembles launcherd: configuration, logging, metrics, the
// scheduler, the event bus with its audit sink, the Android bridge, the
// catalog, every launcher, the lifecycle service and the gin router.
//
// Server lifecycle:
//  1. NewServer builds all components from config; nothing runs yet
//  2. Run listens, starts the scheduler (monitor tick, Android readiness,
//     audit pruning, catalog reload) and serves the control API
//  3. On context cancellation or POST /shutdown every instance is closed,
//     then the API, scheduler, bus and audit log are stopped in that order
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
