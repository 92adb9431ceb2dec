package response

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	errClient = NewError(http.StatusBadRequest, "cannot fetch image")
	errServer = NewError(http.StatusInternalServerError, "inference error")
)

func TestWrap(t *testing.T) {
	err := Wrap(errClient, errors.New("dial tcp: connection refused"))

	assert.ErrorIs(t, err, errClient)
	assert.NotErrorIs(t, err, errServer)
	assert.Equal(t, "cannot fetch image: dial tcp: connection refused", err.Error())
	assert.Equal(t, errClient, Wrap(errClient, nil))
}

func TestCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Code(Wrap(errClient, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, Code(errServer))
	assert.Zero(t, Code(errors.New("plain")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "cannot fetch image", Message(Wrap(errClient, errors.New("404 Not Found"))))
	assert.Equal(t, "inference error: shape mismatch", Message(Wrap(errServer, errors.New("shape mismatch"))))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
