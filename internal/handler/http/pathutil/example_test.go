package pathutil_test

import (
	"fmt"

	"reel-relay/internal/handler/http/pathutil"
)

func ExampleNormalizePath() {
	fmt.Println(pathutil.NormalizePath("/v1/requests/0b6f6c1e-9a3f-4c1e-8d1a-6c5b3d2e1f00"))
	fmt.Println(pathutil.NormalizePath("/v1/admin/bans/42"))
	fmt.Println(pathutil.NormalizePath("/webhooks/meta"))

	// Output:
	// /v1/requests/:id
	// /v1/admin/bans/:userId
	// /webhooks/meta
}
