package config

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var (
	reExport = regexp.MustCompile(`^\s*export\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
	reAssign = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
)

// LoadEnvFiles loads shell-style env files into the process environment.
// Variables already set in the environment win over file values.
// Missing files are skipped.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scan := bufio.NewScanner(f)
		for scan.Scan() {
			key, val, ok := parseEnvLine(scan.Text())
			if !ok {
				continue
			}
			if _, set := os.LookupEnv(key); set {
				continue
			}
			os.Setenv(key, val)
		}
		f.Close()
	}
}

// LoadDefaultEnv loads ANNOTATOR_ENV (when set) and then ./.env.
func LoadDefaultEnv() {
	LoadEnvFiles(strings.TrimSpace(os.Getenv("ANNOTATOR_ENV")), ".env")
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	var key, val string
	if m := reExport.FindStringSubmatch(line); m != nil {
		key, val = m[1], m[2]
	} else if m := reAssign.FindStringSubmatch(line); m != nil {
		key, val = m[1], m[2]
	} else {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	switch {
	case len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`):
		val = val[1 : len(val)-1]
		val = strings.ReplaceAll(val, `\\`, `\`)
		val = strings.ReplaceAll(val, `\"`, `"`)
	case len(val) >= 2 && strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'"):
		// single quotes are literal
		val = val[1 : len(val)-1]
	}
	return key, val, true
}
