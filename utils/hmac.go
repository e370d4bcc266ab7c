package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHMACSHA256 computes HMAC-SHA256 signature and returns hex-encoded string.
func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// AppSecretProof is the Graph API appsecret_proof for an access token.
// Returns "" when no app secret is configured.
func AppSecretProof(appSecret, accessToken string) string {
	if appSecret == "" || accessToken == "" {
		return ""
	}
	return ComputeHMACSHA256(appSecret, accessToken)
}
