/*
Package launcher starts applications of each kind and knows how to close them.

Every kind has one Launcher:

	desktop           native executable, owned process group
	web               URL handed to the default browser, tracked by window title
	folder            directory handed to the file manager, tracked by window title
	embedded-browser  dedicated Chromium host with a per-instance profile
	text-editor       in-process Buffer registered as a window surface
	android-package   package started through the Android bridge

Launch returns the Tracking the lifecycle needs to find the instance again,
or a *LaunchError carrying a Reason. Kinds without an owned process judge
liveness from their window: one that never appears within the tracker grace
period, or disappears for several checks in a row, counts as closed.

RequestGracefulClose reports whether a close request was delivered. A false
result means there is no graceful path, and the caller should force.
*/
package launcher
