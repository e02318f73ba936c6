package storage

import (
	"encoding/json"

	"gorm.io/gorm"
)

func gormExpr(expr string, args ...interface{}) interface{} {
	return gorm.Expr(expr, args...)
}

func jsonQuoted(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
