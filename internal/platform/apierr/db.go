package apierr

import (
	"errors"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// FromDB maps a storage-layer error into the taxonomy. notFoundMsg is used
// when the error means the row does not exist.
func FromDB(err error, notFoundMsg string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(notFoundMsg)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Status: http.StatusConflict, Code: CodeDuplicateEntry, Message: "resource already exists", Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return constraint(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &Error{Status: http.StatusConflict, Code: CodeDuplicateEntry, Message: "resource already exists", Err: err}
		case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation, pgerrcode.NotNullViolation,
			pgerrcode.StringDataRightTruncationDataException:
			return constraint(err)
		}
	}
	return Database(err)
}

func constraint(err error) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeConstraintViolation,
		Message: "request violates a data constraint",
		Err:     err,
	}
}
