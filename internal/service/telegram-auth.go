package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// CheckTelegramAuth проверяет подпись данных Telegram Login Widget.
// data-check-string: отсортированные пары key=value без hash через "\n",
// ключ HMAC = SHA-256(botToken).
func CheckTelegramAuth(values url.Values, botToken string) bool {
	hash := values.Get("hash")
	if hash == "" {
		return false
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(hash)))
}

// TelegramUser — пользователь из проверенных данных виджета.
type TelegramUser struct {
	ID       int64
	Username string
}

// TelegramUserFrom извлекает id и username; ok=false, если id не число.
func TelegramUserFrom(values url.Values) (TelegramUser, bool) {
	id, err := strconv.ParseInt(values.Get("id"), 10, 64)
	if err != nil {
		return TelegramUser{}, false
	}
	return TelegramUser{ID: id, Username: values.Get("username")}, true
}
