package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// dsnPrefill describes the configured database for the setup form. The
// password itself is never echoed back.
type dsnPrefill struct {
	DatabaseType        string `json:"database_type"`
	DatabaseHost        string `json:"database_host,omitempty"`
	DatabasePort        int    `json:"database_port,omitempty"`
	DatabaseUser        string `json:"database_user,omitempty"`
	DatabaseName        string `json:"database_name,omitempty"`
	DatabaseSSLMode     string `json:"database_ssl_mode,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	DatabasePasswordSet bool   `json:"database_password_set"`
}

func prefillFromDSN(dsn string) (dsnPrefill, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnPrefill{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		trimmed = trimmed[len("file:"):]
		pathPart, _, _ := strings.Cut(trimmed, "?")
		return dsnPrefill{DatabaseType: "sqlite", DatabasePath: strings.TrimSpace(pathPart)}, nil
	}
	if pathPart, _, _ := strings.Cut(lowered, "?"); strings.HasSuffix(pathPart, ".db") || strings.HasSuffix(pathPart, ".sqlite") {
		pathPart, _, _ = strings.Cut(trimmed, "?")
		return dsnPrefill{DatabaseType: "sqlite", DatabasePath: strings.TrimSpace(pathPart)}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnPrefill{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnPrefill{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		prefill := dsnPrefill{
			DatabaseType:    "postgres",
			DatabaseHost:    strings.TrimSpace(u.Hostname()),
			DatabasePort:    port,
			DatabaseName:    strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			DatabaseSSLMode: strings.TrimSpace(u.Query().Get("sslmode")),
		}
		if prefill.DatabaseSSLMode == "" {
			prefill.DatabaseSSLMode = "disable"
		}
		if u.User != nil {
			prefill.DatabaseUser = strings.TrimSpace(u.User.Username())
			_, prefill.DatabasePasswordSet = u.User.Password()
		}
		return prefill, nil
	default:
		return dsnPrefill{}, fmt.Errorf("unsupported dsn scheme")
	}
}
