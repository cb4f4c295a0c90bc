// Package android bridges the launcher to the Android subsystem that hosts
// packaged applications.
//
// ADBBridge polls readiness over adb on the scheduler and publishes status
// changes to subscribers. Start refuses to run unless the subsystem is
// Available, so callers fail fast instead of blocking on a subsystem that is
// disabled, booting or asleep.
package android
