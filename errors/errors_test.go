package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode_Follows_Wrapped_Errors(t *testing.T) {
	req := require.New(t)

	wrapped := fmt.Errorf("react: %w", ErrNotFound)

	req.Equal("not_found", Code(wrapped))
	req.Equal(http.StatusNotFound, HTTPStatus(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	req := require.New(t)

	req.Equal(http.StatusBadRequest, HTTPStatus(ErrIdentity))
	req.Equal(http.StatusBadRequest, HTTPStatus(ErrValidation))
	req.Equal(http.StatusUnauthorized, HTTPStatus(ErrUnauthenticated))
	req.Equal(http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("%w: timeout", ErrStoreUnavailable)))
	req.Equal(http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
	req.Equal("internal_error", Code(fmt.Errorf("boom")))
}
