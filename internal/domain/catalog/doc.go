// Package catalog holds application definitions and the file-backed
// provider that serves them filtered by role.
package catalog
