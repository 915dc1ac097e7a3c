package types

import (
	"time"
)

type CallOptions struct {
	Timeout time.Duration
	Retry   int
	Headers map[string]string
	Query   map[string]string
}
