// Package httputil holds the JSON response helpers the API handlers share.
package httputil
