// Package crypto provides the password digest and salt helpers used by the
// session layer. Passwords are never stored: the configured account holds a
// BLAKE2b-512 hex digest of the salted password, and login recomputes the
// digest from the submitted secret and the server-side salt.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// serverSaltSegments is the required number of hyphen-delimited segments in
// the server-side salt. A salt with any other shape is a configuration error
// and every password check against it fails.
const serverSaltSegments = 5

// DigestHex returns the hex-encoded BLAKE2b-512 digest of msg.
func DigestHex(msg string) string {
	sum := blake2b.Sum512([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// CheckPassword verifies a submitted password against a stored digest.
//
// The server salt [s0,s1,s2,s3,s4] and the submitted password are combined as
// "s0-s1-s2-s3-<password>-s4", digested, and compared byte-for-byte against
// storedHex. A server salt that does not split into exactly 5 segments makes
// the check deterministically fail regardless of the password.
func CheckPassword(serverSalt, storedHex, submitted string) bool {
	segs := strings.Split(serverSalt, "-")
	if len(segs) != serverSaltSegments {
		return false
	}
	candidate := strings.Join([]string{segs[0], segs[1], segs[2], segs[3], submitted, segs[4]}, "-")
	digest := DigestHex(candidate)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedHex)) == 1
}

// DecoySalt returns a random string shaped like a client salt (UUID form:
// 8-4-4-4-12 hex). The salt endpoint returns it for unknown usernames so the
// response shape does not reveal whether an account exists.
func DecoySalt() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is unrecoverable; fall back to a fixed shape
		// rather than panicking in a request handler.
		return "00000000-0000-0000-0000-000000000000"
	}
	h := hex.EncodeToString(b[:])
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}
