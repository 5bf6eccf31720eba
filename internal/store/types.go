package store

import "time"

// ChipRecord is one physical chip, keyed by the number printed on it.
type ChipRecord struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Number string `json:"number,omitempty"`
}

// FlashRecord captures one firmware write to a chip.
type FlashRecord struct {
	ID        int64     `json:"id"`
	ChipID    int64     `json:"chip_id"`
	Software  string    `json:"software"`
	FlashedID string    `json:"flashed_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	Station   string    `json:"station,omitempty"`
	Port      string    `json:"port,omitempty"`
}

// TestRecord is one key/value of a test outcome, attached to a flash.
type TestRecord struct {
	ID        int64     `json:"id"`
	FlashID   int64     `json:"flash_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// UnitRow is a chip joined with its latest flash and that flash's tests.
type UnitRow struct {
	ChipNumber  string
	Kind        string
	Software    string
	FlashedID   string
	FlashedTime time.Time
	FlashID     int64
	Tests       map[string]string
}

// SerialLog tracks a serial monitor session.
type SerialLog struct {
	Port      string    `json:"port"`
	BaudRate  int       `json:"baud_rate"`
	Timestamp time.Time `json:"timestamp"`
	LogFile   string    `json:"log_file"`
}
