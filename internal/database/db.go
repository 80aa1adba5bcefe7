package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open はPostgreSQL接続プールを開く。
// sql.Openは接続を試行しないため、実際の疎通確認にはdb.Ping()を使用すること。
//
// プール設定はAPIサーバー1プロセスを想定した値:
// リクエストごとに高々数クエリの短命な処理のため接続数は控えめにし、
// LBやpgbouncerの接続破棄に備えて寿命を制限する。
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
