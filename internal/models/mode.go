package models

import (
	"fmt"
	"strings"
)

// StrategyMode selects how credentials travel to the backend. It is fixed
// for the lifetime of the process.
type StrategyMode string

const (
	// Server sets HttpOnly cookies, the client never sees the tokens
	StrategyCookie StrategyMode = "cookie"
	// Client holds the tokens and sends Authorization: Bearer
	StrategyBearer StrategyMode = "bearer"
)

func (m StrategyMode) String() string {
	return string(m)
}

func (m StrategyMode) IsCookie() bool {
	return m == StrategyCookie
}

func (m StrategyMode) IsBearer() bool {
	return m == StrategyBearer
}

// ParseStrategyMode accepts either a strategy name or a deployment
// environment name. production maps to cookies, everything that looks
// like a development build maps to bearer tokens.
func ParseStrategyMode(value string) (StrategyMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cookie", "cookies", "production", "prod":
		return StrategyCookie, nil
	case "bearer", "token", "development", "dev", "local", "test":
		return StrategyBearer, nil
	default:
		return "", fmt.Errorf("unknown strategy mode: %q", value)
	}
}
