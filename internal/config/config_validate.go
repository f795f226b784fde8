// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shiba-arcade/hackatime-sync/internal/validation"
)

// Validate checks struct rules, then the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateDates(); err != nil {
		return err
	}
	return c.validateCORS()
}

func (c *Config) validateDates() error {
	start, err := c.Hackatime.TrackingStart()
	if err != nil {
		return fmt.Errorf("HACKATIME_START_DATE: %w", err)
	}
	if c.Hackatime.EndDate == "" {
		return nil
	}
	end, err := time.Parse(DateLayout, c.Hackatime.EndDate)
	if err != nil {
		return fmt.Errorf("HACKATIME_END_DATE: invalid date %q: %w", c.Hackatime.EndDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("HACKATIME_END_DATE (%s) is before HACKATIME_START_DATE (%s)",
			c.Hackatime.EndDate, c.Hackatime.StartDate)
	}
	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("CORS_ORIGINS: %q must start with http:// or https://", origin)
		}
	}
	return nil
}
