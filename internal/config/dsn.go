package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// DatabaseURLFromEnv constructs a PostgreSQL URL from environment variables
// named PREFIX_HOST, PREFIX_PORT, PREFIX_USER, PREFIX_PASSWORD, PREFIX_DBNAME,
// and optionally PREFIX_SSLMODE. PREFIX_URL, when set, is returned as is.
//
// HOST and DBNAME are required; PORT defaults to 5432.
func DatabaseURLFromEnv(prefix string) (string, error) {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	if u := os.Getenv(prefix + "URL"); u != "" {
		return u, nil
	}

	host := os.Getenv(prefix + "HOST")
	dbname := os.Getenv(prefix + "DBNAME")

	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port := os.Getenv(prefix + "PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbname,
	}
	user := os.Getenv(prefix + "USER")
	if user != "" {
		if pass := os.Getenv(prefix + "PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	q := u.Query()
	if ssl := os.Getenv(prefix + "SSLMODE"); ssl != "" {
		q.Set("sslmode", ssl)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
