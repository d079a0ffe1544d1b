package handler

import "errors"

var (
	ErrFailedToDecodeRequestBody = errors.New("failed to decode request body")
	ErrInvalidTileKey            = errors.New("tile key is out of range")
)
