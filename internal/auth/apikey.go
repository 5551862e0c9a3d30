package auth

import "crypto/subtle"

// CheckAPIKey compares a presented key against the configured key in
// constant time. Keys of differing length are rejected without leaking the
// length through timing: the comparison always runs over the configured key.
func CheckAPIKey(presented, configured string) bool {
	if configured == "" {
		return false
	}
	// ConstantTimeCompare returns 0 on length mismatch without a timing
	// dependency on content; the extra length check keeps that explicit.
	if subtle.ConstantTimeEq(int32(len(presented)), int32(len(configured))) == 0 {
		subtle.ConstantTimeCompare([]byte(configured), []byte(configured))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
