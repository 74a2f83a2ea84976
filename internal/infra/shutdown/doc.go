// Package shutdown provides graceful shutdown for TallyMesh.
//
// Components register named hooks as they start. On SIGINT, SIGTERM or
// a programmatic Trigger the hooks run in reverse registration order
// under a shared deadline, so the last thing started is the first
// thing stopped.
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("storage", store.Close)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
