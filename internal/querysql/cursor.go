package querysql

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lucasrosaalves/industrial-model/internal/ir"
)

// ErrInvalidCursor is returned for cursors this package did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

type cursorState struct {
	Offset *int `json:"offset"`
}

// EncodeCursor returns the opaque cursor resuming a select at offset.
func EncodeCursor(offset int) string {
	data, err := ir.MarshalCanonical(ir.Object{"offset": ir.Int(offset)})
	if err != nil {
		panic(err) // integers always encode
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns the offset encoded in cursor. The empty cursor is
// the first page.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var st cursorState
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if st.Offset == nil || *st.Offset < 0 {
		return 0, fmt.Errorf("%w: missing or negative offset", ErrInvalidCursor)
	}
	return *st.Offset, nil
}
