// Package targets reads the list of hosts to check.
//
// The format is one host name or IP address per line. Surrounding
// whitespace is trimmed, blank lines and lines starting with # are ignored.
package targets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

// Parse reads targets from r. An input without any target is not an error.
func Parse(r io.Reader) ([]model.Target, error) {
	var ret []model.Target
	scanner := bufio.NewScanner(r)
	var line int
	for scanner.Scan() {
		line++
		host := strings.TrimSpace(scanner.Text())
		if host == "" || strings.HasPrefix(host, "#") {
			continue
		}
		ret = append(ret, model.Target{Line: line, Host: host})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", line+1, err)
	}
	return ret, nil
}

// ReadFile parses targets stored in path. A missing file returns an error
// wrapping fs.ErrNotExist.
func ReadFile(path string) ([]model.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening targets file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	ret, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ret, nil
}
