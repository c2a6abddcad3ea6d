// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ParseDuration accepts Go duration syntax, a whole number of days ("7d"), or
// a bare integer number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("INVALID_DURATION").Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, oops.Code("INVALID_DURATION").With("value", s).Wrap(err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, oops.Code("INVALID_DURATION").With("value", s).Wrap(err)
	}
	return d, nil
}
