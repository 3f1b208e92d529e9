package mysql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
)

// ER_NO_REFERENCED_ROW_2
const errForeignKey = 1452

func isForeignKeyViolation(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errForeignKey
}
