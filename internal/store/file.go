package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lox/cardroom/internal/fileutil"
	"github.com/lox/cardroom/internal/game"
)

// File stores each table as a JSON document and each table's settlements
// as JSON lines under a directory:
//
//	<dir>/tables/<id>.json
//	<dir>/hands/<id>.jsonl
type File struct {
	dir string

	mu    sync.Mutex
	hands map[string]map[string]struct{} // table ID -> stored hand IDs
}

var _ Store = (*File)(nil)

// NewFile opens or creates a file store rooted at dir
func NewFile(dir string) (*File, error) {
	for _, sub := range []string{"tables", "hands"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &File{dir: dir, hands: make(map[string]map[string]struct{})}, nil
}

func (f *File) tablePath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, "tables", id+".json"), nil
}

func (f *File) handsPath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, "hands", id+".jsonl"), nil
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid table id %q", id)
	}
	return nil
}

func (f *File) SaveTable(_ context.Context, rec TableRecord) error {
	path, err := f.tablePath(rec.ID)
	if err != nil {
		return err
	}
	return fileutil.WriteJSONAtomic(path, rec, 0o644)
}

func (f *File) LoadTable(_ context.Context, id string) (TableRecord, error) {
	path, err := f.tablePath(id)
	if err != nil {
		return TableRecord{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return TableRecord{}, fmt.Errorf("table %s: %w", id, ErrNotFound)
	} else if err != nil {
		return TableRecord{}, err
	}
	var rec TableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TableRecord{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

func (f *File) DeleteTable(_ context.Context, id string) error {
	path, err := f.tablePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) ListTables(context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.dir, "tables"))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *File) AppendSettlement(_ context.Context, s *game.Settlement) error {
	path, err := f.handsPath(s.TableID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	known, err := f.knownHands(s.TableID, path)
	if err != nil {
		return err
	}
	if _, ok := known[s.HandID]; ok {
		return fmt.Errorf("%s/%s: %w", s.TableID, s.HandID, ErrDuplicateHand)
	}

	line, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := fileutil.AppendLine(path, line, 0o644); err != nil {
		return err
	}
	known[s.HandID] = struct{}{}
	return nil
}

// knownHands loads the hand IDs already in a table's log. Called with mu held.
func (f *File) knownHands(tableID, path string) (map[string]struct{}, error) {
	if known, ok := f.hands[tableID]; ok {
		return known, nil
	}
	settlements, err := readSettlements(path)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(settlements))
	for _, s := range settlements {
		known[s.HandID] = struct{}{}
	}
	f.hands[tableID] = known
	return known, nil
}

func (f *File) Settlements(_ context.Context, tableID string) ([]game.Settlement, error) {
	path, err := f.handsPath(tableID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return readSettlements(path)
}

func readSettlements(path string) ([]game.Settlement, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []game.Settlement
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s game.Settlement
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, s)
	}
	return out, scanner.Err()
}

func (f *File) SettlementTables(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(f.dir, "hands"))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if id, ok := strings.CutSuffix(e.Name(), ".jsonl"); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *File) Close() error { return nil }
