package migrations

import "embed"

// Files 暴露交易流水相关的 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
