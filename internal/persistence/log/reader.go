package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"slidebounty.ai/internal/session"
)

// Files lists <prefix>-*.jsonl.zst under dir in chronological order.
func Files(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, filepath.Join(dir, name))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ScanFile calls fn for every line of a compressed JSONL file. The slice is
// only valid until fn returns.
func ScanFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}

// ReadEvents loads every journaled session event under dataDir.
func ReadEvents(dataDir string) ([]session.Event, error) {
	files, err := Files(filepath.Join(dataDir, "journal"), "events")
	if err != nil {
		return nil, err
	}
	var out []session.Event
	for _, path := range files {
		err := ScanFile(path, func(line []byte) error {
			var e session.Event
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
