// Copyright (c) 2023 Seagate Technology LLC and/or its Affiliates

package qdma

import (
	"errors"
	"fmt"
)

// Result codes returned to C-style callers; failures are the negated values
const (
	QDMA_SUCCESS                         = 0
	QDMA_ERR_INV_PARAM                   = 1
	QDMA_ERR_NO_MEM                      = 2
	QDMA_ERR_HWACC_BUSY_TIMEOUT          = 3
	QDMA_ERR_HWACC_INV_CONFIG_BAR        = 4
	QDMA_ERR_HWACC_NO_PEND_LEGCY_INTR    = 5
	QDMA_ERR_HWACC_BAR_NOT_FOUND         = 6
	QDMA_ERR_HWACC_FEATURE_NOT_SUPPORTED = 7
)

var (
	ErrInvalidParam        = errors.New("invalid parameter")
	ErrBusyTimeout         = errors.New("hardware access busy timeout")
	ErrInvalidConfigBar    = errors.New("invalid config bar")
	ErrBarNotFound         = errors.New("bar not found")
	ErrFeatureNotSupported = errors.New("feature not supported")

	// ErrUnsupportedAccess is reported for access types a context table does not
	// implement in hardware. It is also an ErrInvalidParam.
	ErrUnsupportedAccess = fmt.Errorf("%w: unsupported access type", ErrInvalidParam)
)

// ErrorCode maps err to the signed result code used by the hardware access layer:
// 0 for success and a negative QDMA_ERR_* value otherwise.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return QDMA_SUCCESS
	case errors.Is(err, ErrInvalidParam):
		return -QDMA_ERR_INV_PARAM
	case errors.Is(err, ErrBusyTimeout):
		return -QDMA_ERR_HWACC_BUSY_TIMEOUT
	case errors.Is(err, ErrInvalidConfigBar):
		return -QDMA_ERR_HWACC_INV_CONFIG_BAR
	case errors.Is(err, ErrBarNotFound):
		return -QDMA_ERR_HWACC_BAR_NOT_FOUND
	case errors.Is(err, ErrFeatureNotSupported):
		return -QDMA_ERR_HWACC_FEATURE_NOT_SUPPORTED
	}
	return -QDMA_ERR_INV_PARAM
}
