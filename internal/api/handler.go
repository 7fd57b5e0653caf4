package api

import "net/http"

// HandlerFunc is an HTTP handler that reports failure by returning an error
// instead of writing the response itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn to net/http. It runs fn to completion and, if fn returned
// an error, writes the error envelope. A handler that returns an error must
// not have written a response yet.
func handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}
