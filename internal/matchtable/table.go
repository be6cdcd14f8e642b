// Package matchtable exposes the match record store as the read-only
// viruscan_matches table through a row cursor protocol.
package matchtable

import (
	"errors"
	"fmt"
	"time"

	"github.com/lefred/mysql-component-viruscan/internal/cache"
	"github.com/lefred/mysql-component-viruscan/internal/types"
)

// Name is the table name.
const Name = "viruscan_matches"

// Definition is the column definition of the table.
const Definition = "`LOGGED` timestamp, `VIRUS` VARCHAR(100), `USER` VARCHAR(32), " +
	"`HOST` VARCHAR(255), `CLAMVERSION` VARCHAR(10), `SIGNATURES` INT"

var (
	// ErrEndOfFile ends a sequential scan.
	ErrEndOfFile = errors.New("end of table")
	// ErrReadOnly is returned by every write.
	ErrReadOnly = errors.New("table viruscan_matches is read-only")
	// ErrNoRow is returned by ReadColumn before a row is positioned.
	ErrNoRow = errors.New("no current row")
	// ErrRecordNotFound is returned by RndPos for an empty slot.
	ErrRecordNotFound = errors.New("record not found")
)

// ColumnType is the SQL type family of a column.
type ColumnType int

const (
	Timestamp ColumnType = iota
	Varchar
	Integer
)

// Column describes one column.
type Column struct {
	Name   string
	Type   ColumnType
	Length int // characters, Varchar only
}

// Columns in table order.
var Columns = []Column{
	{Name: "LOGGED", Type: Timestamp},
	{Name: "VIRUS", Type: Varchar, Length: 100},
	{Name: "USER", Type: Varchar, Length: 32},
	{Name: "HOST", Type: Varchar, Length: 255},
	{Name: "CLAMVERSION", Type: Varchar, Length: 10},
	{Name: "SIGNATURES", Type: Integer},
}

// Value is one cell. Null is only ever set for integer columns.
type Value struct {
	Type ColumnType
	Int  int64 // Timestamp in microseconds, or Integer
	Str  string
	Null bool
}

// Any returns the cell as a plain Go value, nil for NULL.
func (v Value) Any() any {
	switch {
	case v.Null:
		return nil
	case v.Type == Varchar:
		return v.Str
	default:
		return v.Int
	}
}

func (v Value) String() string {
	switch {
	case v.Null:
		return "NULL"
	case v.Type == Varchar:
		return v.Str
	case v.Type == Timestamp:
		return time.UnixMicro(v.Int).UTC().Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(v.Int)
	}
}

// Share is the table registration handed to the host.
type Share struct {
	store *cache.Store
}

// NewShare exposes store as the table.
func NewShare(store *cache.Store) *Share { return &Share{store: store} }

func (s *Share) Name() string       { return Name }
func (s *Share) Definition() string { return Definition }
func (s *Share) ReadOnly() bool     { return true }

// RowCount is the store's reported size, its capacity.
func (s *Share) RowCount() int { return s.store.RowCount() }

// DeleteAllRows empties the store. The host calls it when the table is
// (re)created, never on behalf of a user.
func (s *Share) DeleteAllRows() { s.store.Clear() }

// Open returns a new handle for one table scan.
func (s *Share) Open() *Handle { return &Handle{share: s} }

// Handle is one open scan of the table. It is not safe for concurrent use.
type Handle struct {
	share   *Share
	cursor  *cache.Cursor
	pos     int // slot of the current row, or saved by SetPosition
	current *types.MatchRecord
}

// RndInit starts a sequential scan from the first slot.
func (h *Handle) RndInit() error {
	h.cursor = h.share.store.Open()
	h.current = nil
	h.pos = 0
	return nil
}

// RndNext positions on the next occupied slot.
func (h *Handle) RndNext() error {
	if h.cursor == nil {
		if err := h.RndInit(); err != nil {
			return err
		}
	}
	rec, slot, ok := h.cursor.Next()
	if !ok {
		h.current = nil
		return ErrEndOfFile
	}
	h.current = &rec
	h.pos = slot
	return nil
}

// Position returns the slot of the current row, for a later RndPos.
func (h *Handle) Position() int { return h.pos }

// SetPosition stores a slot previously returned by Position.
func (h *Handle) SetPosition(pos int) { h.pos = pos }

// RndPos positions on the saved slot without moving the sequential scan.
func (h *Handle) RndPos() error {
	rec, ok := h.share.store.Get(h.pos)
	if !ok {
		h.current = nil
		return ErrRecordNotFound
	}
	h.current = &rec
	return nil
}

// ResetPosition rewinds the sequential scan to the first slot.
func (h *Handle) ResetPosition() {
	if h.cursor != nil {
		h.cursor.Reset()
	}
	h.pos = 0
	h.current = nil
}

// ReadColumn returns column i of the current row.
func (h *Handle) ReadColumn(i int) (Value, error) {
	if h.current == nil {
		return Value{}, ErrNoRow
	}
	if i < 0 || i >= len(Columns) {
		return Value{}, fmt.Errorf("column index %d out of range", i)
	}
	r := h.current
	col := Columns[i]
	switch col.Name {
	case "LOGGED":
		return Value{Type: Timestamp, Int: r.Timestamp.Unix() * 1_000_000}, nil
	case "VIRUS":
		return varchar(col, r.SignatureName), nil
	case "USER":
		return varchar(col, r.User), nil
	case "HOST":
		return varchar(col, r.Host), nil
	case "CLAMVERSION":
		return varchar(col, r.EngineVersion), nil
	default:
		return Value{Type: Integer, Int: r.Signatures.Value, Null: !r.Signatures.Valid}, nil
	}
}

func varchar(col Column, s string) Value {
	return Value{Type: Varchar, Str: types.ClipRunes(s, col.Length)}
}

// ReadRow returns every column of the current row.
func (h *Handle) ReadRow() ([]Value, error) {
	row := make([]Value, len(Columns))
	for i := range Columns {
		v, err := h.ReadColumn(i)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (h *Handle) WriteRow([]Value) error  { return ErrReadOnly }
func (h *Handle) UpdateRow([]Value) error { return ErrReadOnly }
func (h *Handle) DeleteRow() error        { return ErrReadOnly }

// Close ends the scan.
func (h *Handle) Close() {
	h.cursor = nil
	h.current = nil
}

// Rows drives a full sequential scan and returns every row.
func (s *Share) Rows() ([][]Value, error) {
	h := s.Open()
	defer h.Close()
	if err := h.RndInit(); err != nil {
		return nil, err
	}
	var rows [][]Value
	for {
		err := h.RndNext()
		if errors.Is(err, ErrEndOfFile) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := h.ReadRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
