// Package request exposes link submission and request status.
package request

import "net/http"

// Register mounts the /v1/requests routes. submitLimit wraps POST only and
// may be nil.
func Register(mux *http.ServeMux, svc Submitter, repo Getter, submitLimit func(http.Handler) http.Handler) {
	var submit http.Handler = SubmitHandler{Svc: svc}
	if submitLimit != nil {
		submit = submitLimit(submit)
	}
	mux.Handle("POST /v1/requests", submit)
	mux.Handle("GET /v1/requests/{id}", GetHandler{Repo: repo})
}
