// Package env чтение отдельных переменных окружения для вспомогательных команд.
// Сервер использует internal/config.
package env

import (
	"os"
	"strconv"
	"strings"
)

// GetString значение переменной или fallback, если она не задана.
func GetString(key string, fallback string) string {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return res
}

// GetInt fallback также при нечисловом значении.
func GetInt(key string, fallback int) int {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.Atoi(strings.TrimSpace(res))
	if err != nil {
		return fallback
	}
	return val
}

func GetBool(key string, fallback bool) bool {
	res, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val, err := strconv.ParseBool(strings.TrimSpace(res))
	if err != nil {
		return fallback
	}
	return val
}
