package respond

import "regexp"

// redaction は一致した部分を置換する。順序どおりに適用する
type redaction struct {
	pattern *regexp.Regexp
	replace string
}

var redactions = []redaction{
	// Bot API のURLに埋め込まれるトークン (bot123456:AA...)
	{regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`), "bot****"},
	// Graph API のクエリパラメータ
	{regexp.MustCompile(`((?:access_token|appsecret_proof)=)[^&\s"]+`), "${1}****"},
	// Authorization ヘッダーをそのまま含むエラー
	{regexp.MustCompile(`(Bearer )[A-Za-z0-9._~+/=-]+`), "${1}****"},
	// DSN 内のパスワード
	{regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`), "://$1:****@"},
}

// SanitizeError は機密情報をマスクしたエラーメッセージを返す
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, r := range redactions {
		msg = r.pattern.ReplaceAllString(msg, r.replace)
	}
	return msg
}
