/*
Package window finds, activates and closes the top-level windows of launched
applications.

OS windows come from a Backend: wmctrl on X11 sessions, or a no-op backend
when the daemon runs headless. In-process UI such as editor buffers and
embedded browser views registers itself as a Surface and is addressed by
surface id.

A Query that matches nothing is not an error. It means the application has
no visible UI right now, which is valid for background-style instances.
*/
package window
