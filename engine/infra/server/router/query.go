package router

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// QueryTime parses an optional RFC 3339 query parameter. A missing or blank
// parameter yields nil.
func QueryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not an RFC 3339 timestamp", name, raw)
	}
	return &t, nil
}

// QueryFloat parses an optional float query parameter.
func QueryFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a number", name, raw)
	}
	return &f, nil
}

// QueryInt parses an optional integer query parameter, falling back to def.
func QueryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", name, raw)
	}
	return n, nil
}

// QueryList returns every occurrence of a repeated query parameter. A nil
// result means the parameter was absent.
func QueryList(c *gin.Context, name string) []string {
	values, ok := c.GetQueryArray(name)
	if !ok {
		return nil
	}
	return values
}
