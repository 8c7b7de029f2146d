package config

import (
	"log"
	"strings"
)

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustHTTPURL(value, envName string) {
	MustNonEmpty(value, envName)
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		log.Fatalf("env %s must be an http(s) url, got %q", envName, value)
	}
}
