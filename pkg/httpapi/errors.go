package httpapi

import "errors"

var (
	ErrListenSocket  = errors.New("httpapi: listen on control socket")
	ErrDecodeRequest = errors.New("httpapi: decode request body")
)
