package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Identity is the derived student key. Two students whose name and class
// category digest to the same 8 characters share one Identity.
type Identity string

const identityLen = 8

// DeriveIdentity returns the first 8 hex characters of md5(name + "_" + category), upper-cased.
func DeriveIdentity(studentName, classCategory string) Identity {
	sum := md5.Sum([]byte(studentName + "_" + classCategory))
	return Identity(strings.ToUpper(hex.EncodeToString(sum[:])[:identityLen]))
}

// ParseIdentity accepts an identity in any letter case and returns its canonical form.
func ParseIdentity(s string) (Identity, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != identityLen {
		return "", fmt.Errorf("invalid student id %q: must be %d hex characters", s, identityLen)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid student id %q: must be %d hex characters", s, identityLen)
	}
	return Identity(s), nil
}

func (id Identity) String() string {
	return string(id)
}
