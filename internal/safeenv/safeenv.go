// Package safeenv classifies filesystem paths and shell commands as allowed
// or denied before any I/O happens, and builds the scrubbed environment
// every subprocess spawn is given (see spec.md §4.1).
package safeenv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// deniedPrefixes is the fixed set of path prefixes no command may touch,
// regardless of project. Entries are matched with a trailing separator so
// that e.g. "/etc2/" is not mistaken for "/etc/".
var deniedPrefixes = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/private/etc/",
	"/private/var/db/",
}

// homeDenyPrefixes is appended under $HOME at evaluation time.
var homeDenySuffixes = []string{
	".ssh/",
	".aws/",
	".gnupg/",
	".config/gcloud/",
}

var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/\s*($|[;&|])`),
	regexp.MustCompile(`rm\s+-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*\s+/\s*($|[;&|])`),
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\b[^|;&]*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/(sd|hd|nvme|disk)`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
}

// envWhitelist is the only set of environment variables that may cross from
// the parent process into a spawned subprocess.
var envWhitelist = []string{
	"PATH", "HOME", "USER", "SHELL", "LANG", "LC_ALL", "LC_MESSAGES",
	"TERM", "TMPDIR", "TMP", "TEMP", "NODE_ENV",
	"SystemRoot", "USERPROFILE", "APPDATA", "PATHEXT", "COMSPEC",
}

// DeniedError is returned by ValidatePath/ValidateCommand when a path or
// command is rejected. Message is the exact string meant to reach the
// control plane as the command result's error field.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string { return e.Message }

func deny(format string, args ...any) error {
	return &DeniedError{Message: fmt.Sprintf(format, args...)}
}

func deniedPathPrefixes() []string {
	prefixes := append([]string(nil), deniedPrefixes...)
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return prefixes
	}
	for _, suffix := range homeDenySuffixes {
		prefixes = append(prefixes, filepath.Join(home, suffix)+string(filepath.Separator))
	}
	return prefixes
}

// ValidatePath resolves p to its real path, following symlinks, and denies
// it if the resolved path falls under a protected prefix. If the leaf does
// not exist, the parent directory is resolved instead and the basename
// re-joined, so a not-yet-created file under a denied directory is still
// caught.
func ValidatePath(p string) (string, error) {
	resolved, err := resolveReal(p)
	if err != nil {
		return "", fmt.Errorf("safeenv: resolve path %q: %w", p, err)
	}

	check := resolved
	if !strings.HasSuffix(check, string(filepath.Separator)) {
		check += string(filepath.Separator)
	}

	for _, prefix := range deniedPathPrefixes() {
		normPrefix := prefix
		if !strings.HasSuffix(normPrefix, string(filepath.Separator)) {
			normPrefix += string(filepath.Separator)
		}
		if check == normPrefix || strings.HasPrefix(check, normPrefix) {
			return "", deny("Access denied: %s paths are blocked", prefix)
		}
	}
	return resolved, nil
}

// resolveReal follows symlinks for p, falling back to resolving the parent
// directory and re-joining the basename when the leaf itself does not
// exist yet (e.g. a file about to be created by file_write).
func resolveReal(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	parent := filepath.Dir(abs)
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		// Parent does not exist either; nothing more we can resolve -
		// treat the absolute, unresolved path as the best-effort answer.
		return abs, nil
	}
	return filepath.Join(realParent, filepath.Base(abs)), nil
}

// ValidateCommand rejects shell command strings that match a known
// dangerous pattern (rm -rf /, mkfs, dd to a block device, redirect to a
// block device, the classic fork-bomb idiom).
func ValidateCommand(s string) error {
	for _, pattern := range denyPatterns {
		if pattern.MatchString(s) {
			return deny("Blocked dangerous command pattern: %s", pattern.String())
		}
	}
	return nil
}

// BuildSafeEnv returns the subset of the current process environment whose
// keys are on the fixed whitelist, formatted as "KEY=VALUE" pairs suitable
// for exec.Cmd.Env.
func BuildSafeEnv() []string {
	out := make([]string, 0, len(envWhitelist))
	for _, key := range envWhitelist {
		if v, ok := os.LookupEnv(key); ok {
			out = append(out, key+"="+v)
		}
	}
	return out
}
