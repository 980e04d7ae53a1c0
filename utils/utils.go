// Package utils provides utility functions for the application.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// Request context keys shared by handlers and flows
type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
	UserIDKey     ContextKey = "user_id"
	UsernameKey   ContextKey = "username"
)

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// Deref returns the pointed value or the zero value
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// RandomHex returns n random bytes hex encoded
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomPassword draws length characters from an unambiguous alphabet
func RandomPassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for range length {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(passwordAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
