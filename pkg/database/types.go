package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores any JSON-serialisable value in a text column. It works the same
// on PostgreSQL, MySQL and SQLite, which is all the chat schema needs for small
// embedded lists such as message attachments.
type JSON[T any] struct {
	Data T
}

// NewJSON wraps v for storage.
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{Data: v}
}

// Scan implements the sql.Scanner interface for reading from the database.
func (j *JSON[T]) Scan(value interface{}) error {
	var zero T
	switch v := value.(type) {
	case nil:
		j.Data = zero
		return nil
	case []byte:
		return j.unmarshal(v)
	case string:
		return j.unmarshal([]byte(v))
	default:
		return errors.New("JSON: unsupported scan type")
	}
}

func (j *JSON[T]) unmarshal(data []byte) error {
	if len(data) == 0 {
		var zero T
		j.Data = zero
		return nil
	}
	return json.Unmarshal(data, &j.Data)
}

// Value implements the driver.Valuer interface for writing to the database.
func (j JSON[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (JSON[T]) GormDataType() string {
	return "text"
}
