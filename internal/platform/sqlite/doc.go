// Package sqlite открывает встроенную SQLite БД (modernc.org/sqlite, без cgo),
// применяет к ней встроенные миграции golang-migrate и выполняет код в
// транзакциях с ретраями на SQLITE_BUSY.
//
// Используется хранилищем подписчиков, когда DATABASE_URL не указывает на PostgreSQL.
package sqlite
