// Package server exposes the engine over HTTP for `goverify serve`.
package server
