package config

import (
	"fmt"
	"strconv"
	"strings"
)

func parseIntValue(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

func parseUintValue(value string) (uint64, error) {
	return strconv.ParseUint(value, 10, 64)
}

func parseFloatValue(value string, bitSize int) (float64, error) {
	return strconv.ParseFloat(value, bitSize)
}

func parseBoolValue(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", value)
	}
}

// splitList splits a comma separated env value, dropping empty items
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
