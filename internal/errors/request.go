package errors

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes the request body into dst. A malformed body is an
// invalid parameter.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return InvalidParameter().WithCause(err)
	}
	return nil
}
