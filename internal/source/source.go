// Package source loads flow logs from local paths or URL-like locators.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bgricker/flowreport/internal/report"
)

// DefaultLogName is the file the test runner writes inside each flow directory.
const DefaultLogName = "maestro.log"

// DefaultUserAgent identifies remote log requests.
const DefaultUserAgent = "flowreport"

// ErrUnauthorized is returned when a log host rejects the credentials.
var ErrUnauthorized = errors.New("authentication failed")

// Loader resolves locators to flow logs. Username and Password, when set, are
// sent as HTTP Basic Auth with every remote request.
type Loader struct {
	Client    *http.Client
	LogName   string
	Username  string
	Password  string
	UserAgent string
}

// NewLoader returns a Loader with a bounded HTTP client.
func NewLoader() *Loader {
	return &Loader{
		Client:    &http.Client{Timeout: 30 * time.Second},
		LogName:   DefaultLogName,
		UserAgent: DefaultUserAgent,
	}
}

// Load reads the log behind locator. Accepted forms are a filesystem path,
// a file:// URL, and an http(s):// URL. Missing logs yield an error that
// matches os.ErrNotExist.
func (l *Loader) Load(ctx context.Context, locator string) (report.FlowLog, error) {
	u, err := url.Parse(locator)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l.fetch(ctx, u)
		case "file":
			p := u.Path
			if p == "" {
				p = u.Opaque
			}
			return l.readFile(p)
		}
	}
	return l.readFile(locator)
}

// FlowName derives the flow name for a log path: the containing directory
// for conventionally named logs, otherwise the file name without extension.
func (l *Loader) FlowName(p string) string {
	base := filepath.Base(p)
	logName := l.LogName
	if logName == "" {
		logName = DefaultLogName
	}
	if base == logName {
		if dir := filepath.Base(filepath.Dir(p)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (l *Loader) readFile(p string) (report.FlowLog, error) {
	info, err := os.Stat(p)
	if err != nil {
		return report.FlowLog{}, fmt.Errorf("stat log %q: %w", p, err)
	}
	if info.IsDir() {
		return report.FlowLog{}, fmt.Errorf("log %q is a directory", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return report.FlowLog{}, fmt.Errorf("read log %q: %w", p, err)
	}
	return report.FlowLog{
		Path:    p,
		Name:    l.FlowName(p),
		Content: string(data),
		ModTime: info.ModTime().UTC(),
	}, nil
}

func (l *Loader) fetch(ctx context.Context, u *url.URL) (report.FlowLog, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return report.FlowLog{}, fmt.Errorf("build request %q: %w", u, err)
	}
	agent := l.UserAgent
	if agent == "" {
		agent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", agent)
	if l.Username != "" || l.Password != "" {
		req.SetBasicAuth(l.Username, l.Password)
	}
	resp, err := client.Do(req)
	if err != nil {
		return report.FlowLog{}, fmt.Errorf("fetch log %q: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return report.FlowLog{}, fmt.Errorf("fetch log %q: %w", u, os.ErrNotExist)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return report.FlowLog{}, fmt.Errorf("fetch log %q: %w (%s)", u, ErrUnauthorized, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return report.FlowLog{}, fmt.Errorf("fetch log %q: unexpected status %s", u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return report.FlowLog{}, fmt.Errorf("read log %q: %w", u, err)
	}

	var mod time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			mod = t.UTC()
		}
	}
	return report.FlowLog{
		Path:    u.String(),
		Name:    l.FlowName(path.Clean(u.Path)),
		Content: string(data),
		ModTime: mod,
	}, nil
}

// IsNotFound reports whether err means the log does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
