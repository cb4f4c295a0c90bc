/*
Package lifecycle orchestrates application instances from launch to close.

The Service picks the launcher for a definition's kind, registers the
resulting instance and arms the monitor for it. Exits the service did not ask
for become crashes. Closes run a fixed sequence per instance:

	Running -> Closing -> graceful request -> wait(timeout)
	                   -> forced close     -> wait(final)
	                   -> Closed, or Failed when still running

The entry is removed from the registry in both outcomes. Bulk operations run
every sequence concurrently, so ShutdownAll(g, f) finishes in about g+f no
matter how many instances are registered.

CloseAllForUser is the user-switch control. While it runs, launches for that
user are refused and launches already in flight are waited for. Every
instance that could not be confirmed closed is listed in the result.
*/
package lifecycle
