// Package monitor turns process and window liveness into exit events for
// launched instances.
package monitor
