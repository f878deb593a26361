package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const configFileName = "tasksync.toml"

// findProjectConfigFile returns the first config file present in the working
// directory, or "".
func findProjectConfigFile() string {
	return firstExisting(configFileName, "."+configFileName)
}

// findUserConfigFile prefers ~/.tasksync/tasksync.toml over
// <user config dir>/tasksync/tasksync.toml.
func findUserConfigFile() string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tasksync", configFileName))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "tasksync", configFileName))
	}
	return firstExisting(candidates...)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// expandPath expands ~ and environment variables, including %VAR% on Windows.
func expandPath(p string) string {
	if p == "" {
		return p
	}

	p = os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		p = expandPercentVars(p)
	}

	rest, ok := trimHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// trimHome strips a leading ~ or ~/ and reports whether one was present.
func trimHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	if strings.HasPrefix(p, "~/") {
		return p[2:], true
	}
	if runtime.GOOS == "windows" && strings.HasPrefix(p, `~\`) {
		return p[2:], true
	}
	return p, false
}

// expandPercentVars replaces %NAME% with the value of NAME. Unknown names
// and unmatched percent signs are left as written.
func expandPercentVars(p string) string {
	var b strings.Builder
	for {
		before, after, found := strings.Cut(p, "%")
		b.WriteString(before)
		if !found {
			return b.String()
		}
		name, tail, closed := strings.Cut(after, "%")
		switch {
		case !closed:
			b.WriteByte('%')
			b.WriteString(after)
			return b.String()
		case name == "":
			b.WriteByte('%')
			p = "%" + tail
			continue
		}
		if val, ok := os.LookupEnv(name); ok {
			b.WriteString(val)
		} else {
			b.WriteString("%" + name + "%")
		}
		p = tail
	}
}
