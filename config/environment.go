package config

import (
	"fmt"
	"strings"
)

// Environment identifies the deployment environment the app runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// ParseEnvironment parses an ENV value, accepting common long forms
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(value) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", value)
	}
}

func (e Environment) String() string {
	return string(e)
}
