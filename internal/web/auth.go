package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// ValidateInitData checks the signature of Telegram WebApp initData.
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-web-app
func ValidateInitData(initData, botToken string) bool {
	if initData == "" || botToken == "" {
		return false
	}
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(vals.Get("hash"))
	if err != nil || len(got) == 0 {
		return false
	}
	vals.Del("hash")
	return hmac.Equal(got, initDataHash(vals, botToken))
}

// data_check_string is key=value sorted by key and joined by \n; the key is
// HMAC_SHA256("WebAppData", token).
func initDataHash(vals url.Values, botToken string) []byte {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+vals.Get(k))
	}
	sk := hmac.New(sha256.New, []byte("WebAppData"))
	sk.Write([]byte(botToken))
	h := hmac.New(sha256.New, sk.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))
	return h.Sum(nil)
}
