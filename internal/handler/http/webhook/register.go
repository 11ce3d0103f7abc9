// Package webhook exposes the Meta webhook endpoint.
package webhook

import "net/http"

// Register mounts GET (verification) and POST (notifications) on /webhooks/meta.
func Register(mux *http.ServeMux, verifyToken, appSecret string, svc Processor) {
	mux.Handle("GET /webhooks/meta", VerifyHandler{VerifyToken: verifyToken})
	mux.Handle("POST /webhooks/meta", ReceiveHandler{AppSecret: appSecret, Svc: svc})
}
