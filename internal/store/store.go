package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

const (
	chipsFile      = "chips.json"
	flashesFile    = "flashes.json"
	testsFile      = "tests.json"
	serialLogsFile = "serial_logs.json"
)

// Store manages persistence of chip/flash/test records and serial logs.
type Store struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a Store rooted at the given directory (typically .chipcheck/).
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

func (s *Store) logsDir() string {
	return filepath.Join(s.root, "logs")
}

// RegisterChip returns the ID of the chip with number, updating its kind, or
// inserts a new chip. Chips without a number are always inserted.
func (s *Store) RegisterChip(kind, number string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chips []ChipRecord
	if err := s.loadLocked(chipsFile, &chips); err != nil {
		return 0, err
	}
	if number != "" {
		for i := range chips {
			if chips[i].Number == number {
				chips[i].Kind = kind
				return chips[i].ID, s.saveLocked(chipsFile, chips)
			}
		}
	}

	var next int64 = 1
	for _, c := range chips {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	chips = append(chips, ChipRecord{ID: next, Kind: kind, Number: number})
	return next, s.saveLocked(chipsFile, chips)
}

// RegisterFlash stores r under a new ID and returns it. A zero Timestamp is
// set to now.
func (s *Store) RegisterFlash(r FlashRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flashes []FlashRecord
	if err := s.loadLocked(flashesFile, &flashes); err != nil {
		return 0, err
	}
	r.ID = 1
	for _, f := range flashes {
		if f.ID >= r.ID {
			r.ID = f.ID + 1
		}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	flashes = append(flashes, r)
	return r.ID, s.saveLocked(flashesFile, flashes)
}

// RegisterTest attaches one key/value to a flash.
func (s *Store) RegisterTest(flashID int64, key, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTestsLocked(flashID, [][2]string{{key, value}})
}

// RegisterOutcome attaches every entry of out to a flash, in key order.
func (s *Store) RegisterOutcome(flashID int64, out map[string]string) error {
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, out[k]})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addTestsLocked(flashID, pairs)
	return err
}

func (s *Store) addTestsLocked(flashID int64, pairs [][2]string) (int64, error) {
	var tests []TestRecord
	if err := s.loadLocked(testsFile, &tests); err != nil {
		return 0, err
	}
	var next int64 = 1
	for _, t := range tests {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	now := s.now()
	var last int64
	for _, p := range pairs {
		tests = append(tests, TestRecord{ID: next, FlashID: flashID, Key: p[0], Value: p[1], Timestamp: now})
		last = next
		next++
	}
	return last, s.saveLocked(testsFile, tests)
}

// Chips returns all chip records.
func (s *Store) Chips() ([]ChipRecord, error) {
	var records []ChipRecord
	err := s.loadRecords(chipsFile, &records)
	return records, err
}

// Flashes returns all flash records.
func (s *Store) Flashes() ([]FlashRecord, error) {
	var records []FlashRecord
	err := s.loadRecords(flashesFile, &records)
	return records, err
}

// Tests returns all test records.
func (s *Store) Tests() ([]TestRecord, error) {
	var records []TestRecord
	err := s.loadRecords(testsFile, &records)
	return records, err
}

// Units joins every chip with its latest flash in [from, to] and that
// flash's tests. Zero bounds are open. Rows are ordered by flashed ID, then
// chip number.
func (s *Store) Units(from, to time.Time) ([]UnitRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		chips   []ChipRecord
		flashes []FlashRecord
		tests   []TestRecord
	)
	for name, dest := range map[string]any{chipsFile: &chips, flashesFile: &flashes, testsFile: &tests} {
		if err := s.loadLocked(name, dest); err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
	}

	latest := make(map[int64]FlashRecord)
	for _, f := range flashes {
		if !from.IsZero() && f.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && f.Timestamp.After(to) {
			continue
		}
		if cur, ok := latest[f.ChipID]; !ok || f.ID > cur.ID {
			latest[f.ChipID] = f
		}
	}

	byFlash := make(map[int64]map[string]string)
	for _, t := range tests {
		m := byFlash[t.FlashID]
		if m == nil {
			m = make(map[string]string)
			byFlash[t.FlashID] = m
		}
		m[t.Key] = t.Value
	}

	rows := make([]UnitRow, 0, len(latest))
	for _, c := range chips {
		f, ok := latest[c.ID]
		if !ok {
			continue
		}
		tm := byFlash[f.ID]
		if tm == nil {
			tm = map[string]string{}
		}
		rows = append(rows, UnitRow{
			ChipNumber:  c.Number,
			Kind:        c.Kind,
			Software:    f.Software,
			FlashedID:   f.FlashedID,
			FlashedTime: f.Timestamp,
			FlashID:     f.ID,
			Tests:       tm,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FlashedID != rows[j].FlashedID {
			return lessNumeric(rows[i].FlashedID, rows[j].FlashedID)
		}
		return lessNumeric(rows[i].ChipNumber, rows[j].ChipNumber)
	})
	return rows, nil
}

// TestKeys returns every distinct test key, sorted.
func (s *Store) TestKeys() ([]string, error) {
	tests, err := s.Tests()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var keys []string
	for _, t := range tests {
		if !seen[t.Key] {
			seen[t.Key] = true
			keys = append(keys, t.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// lessNumeric orders numbers numerically, numbers before text, and text
// lexically.
func lessNumeric(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}

// SerialLogs returns all serial log entries.
func (s *Store) SerialLogs() ([]SerialLog, error) {
	var records []SerialLog
	err := s.loadRecords(serialLogsFile, &records)
	return records, err
}

// AddSerialLog appends a serial log entry.
func (s *Store) AddSerialLog(r SerialLog) error {
	return s.appendRecord(serialLogsFile, r)
}

// LogsDir returns the path to the logs directory, creating it if needed.
func (s *Store) LogsDir() (string, error) {
	dir := s.logsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Read existing records
	var records []json.RawMessage
	if err := s.loadLocked(filename, &records); err != nil {
		return err
	}

	// Marshal and append new record
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)
	return s.saveLocked(filename, records)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(filename, dest)
}

func (s *Store) loadLocked(filename string, dest any) error {
	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (s *Store) saveLocked(filename string, records any) error {
	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, filename), data, 0o644)
}
