package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

// fieldError is the 400 reported for a malformed parameter or body field.
func fieldError(name string) error {
	return newValidationError(name, "invalid_"+name, "invalid "+name)
}

// queryBool reads an optional boolean query parameter. Absent means false.
func queryBool(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fieldError(name)
	}
	return v, nil
}

// optionalID parses an optional snowflake reference carried in a body field.
func optionalID(name, raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, fieldError(name)
	}
	return &id, nil
}

// queryTime accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func queryTime(name, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, fieldError(name)
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

// pathID validates a snowflake path parameter and returns it trimmed.
func pathID(c *gin.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if parsed, err := snowflake.ParseString(id); err != nil || parsed == 0 {
		return "", fieldError(name)
	}
	return id, nil
}

// resourceID reads the :id param and records it under key for request
// logs and spans.
func resourceID(c *gin.Context, key string) (string, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return "", err
	}
	c.Set(key, id)
	return id, nil
}
