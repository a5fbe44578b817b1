// Package env reads dotenv files and resolves settings from flags and the
// process environment.
package env

import (
	"os"
	"strings"

	"github.com/cyberfolio/folio-core/logger"
	"github.com/spf13/cobra"
)

// Prefix is the namespace of every variable this module reads.
const Prefix = "FOLIO_"

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses a dotenv file. A missing file yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEnvBuffer(buf)
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits KEY=value, removing one level of quotes and an
// optional leading "export".
func ProcessEnvLine(line string) EnvLine {
	line = strings.TrimPrefix(line, "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: strings.TrimSpace(line)}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

// ParseEnvBuffer parses dotenv content. Values may reference earlier or later
// keys with ${KEY} or ${KEY:-default}.
func ParseEnvBuffer(buf []byte) ([]EnvLine, error) {
	envs := make([]EnvLine, 0)
	vars := make(map[string]string)
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e := ProcessEnvLine(line)
		if e.Key == "" {
			continue
		}
		e.Val = Interpolate(e.Val, mapLookup(vars))
		vars[e.Key] = e.Val
		envs = append(envs, e)
	}
	// second pass picks up forward references
	for i := range envs {
		envs[i].Val = Interpolate(envs[i].Val, mapLookup(vars))
	}
	return envs, nil
}

// Lookup resolves a variable name. It reports false when the name is unset.
type Lookup func(key string) (string, bool)

func mapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Chain returns a Lookup that tries each lookup in order.
func Chain(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// OS looks up the process environment.
func OS() Lookup {
	return os.LookupEnv
}

// FromLines returns a Lookup over parsed dotenv lines.
func FromLines(lines []EnvLine) Lookup {
	m := make(map[string]string, len(lines))
	for _, l := range lines {
		m[l.Key] = l.Val
	}
	return mapLookup(m)
}

// Interpolate replaces ${KEY} and ${KEY:-default} references in input. A
// reference that cannot be resolved and has no default is left as written.
func Interpolate(input string, lookup Lookup) string {
	if !strings.Contains(input, "${") {
		return input
	}
	var out strings.Builder
	rest := input
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			out.WriteString(rest)
			return out.String()
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			out.WriteString(rest)
			return out.String()
		}
		end += start
		out.WriteString(rest[:start])
		ref := rest[start : end+1]
		name, def, _ := strings.Cut(ref[2:len(ref)-1], ":-")
		val, ok := "", false
		if name != "" {
			val, ok = lookup(strings.TrimPrefix(name, "env:"))
		}
		switch {
		case ok && val != "":
			out.WriteString(val)
		case def != "":
			out.WriteString(def)
		default:
			out.WriteString(ref)
		}
		rest = rest[end+1:]
	}
}

// FlagOrEnv returns the named string flag when set, then the environment
// variable, then defaultValue.
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	if flagValue, _ := cmd.Flags().GetString(flagName); flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

// LogLevel reads --log-level, then FOLIO_LOG_LEVEL, defaulting to info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, _ := logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.EnvLogLevel, "info"))
	return level
}

// NewLogger returns a logger honoring --log-level and --log-format.
func NewLogger(cmd *cobra.Command) logger.Logger {
	return logger.New(FlagOrEnv(cmd, "log-format", Prefix+"LOG_FORMAT", "console"), LogLevel(cmd))
}
