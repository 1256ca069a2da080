package pg

import (
	"net/url"
	"strings"
)

// IsURL сообщает, что строка подключения указывает на PostgreSQL
// (postgres:// или postgresql://).
func IsURL(dsn string) bool {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// Redact скрывает пароль в URL подключения для логов.
// Строки не в формате URL возвращаются как "<redacted>".
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "<redacted>"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// migrateURL приводит схему к postgres://, которую регистрирует драйвер golang-migrate.
func migrateURL(dsn string) string {
	if scheme, rest, ok := strings.Cut(dsn, "://"); ok && strings.EqualFold(scheme, "postgresql") {
		return "postgres://" + rest
	}
	return dsn
}
