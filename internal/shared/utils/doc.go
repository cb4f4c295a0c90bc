// Package utils validates identifiers that arrive from API clients before
// they reach the catalog or the lifecycle core.
package utils
