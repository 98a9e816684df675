// Package datarecording stores simulation history in SQLite.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry. Creating a table that already exists does nothing.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created by this recorder.
	ListTables() []string

	// Flush writes all buffered entries into the database.
	Flush()

	// Path returns the database file, or "" for an injected database.
	Path() string

	// Close flushes and closes the database.
	Close() error
}

// DefaultPath returns a fresh database file name in the working directory.
func DefaultPath() string {
	return "clinicsim_" + xid.New().String() + ".sqlite3"
}

// New creates a DataRecorder writing to a new SQLite file at path. An empty
// path picks a generated name. Buffered entries are flushed when the
// process exits through atexit.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("datarecording: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datarecording: opening %s: %w", path, err)
	}

	w := newWriter(db)
	w.path = path

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := newWriter(db)

	atexit.Register(func() { w.Flush() })

	return w
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		DB:        db,
		batchSize: 10000,
		tables:    make(map[string]*table),
	}
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB

	path       string
	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// checkStructFields accepts structs of basic fields and of pointers to basic
// fields. A nil pointer is stored as NULL.
func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return errors.New("datarecording: entry must be a struct")
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			return fmt.Errorf("datarecording: field %s is not exported", field.Name)
		}

		kind := field.Type.Kind()
		if kind == reflect.Pointer {
			kind = field.Type.Elem().Kind()
		}

		if !isAllowedKind(kind) {
			return fmt.Errorf("datarecording: field %s has unsupported type %s",
				field.Name, field.Type)
		}
	}

	return nil
}

func (t *sqliteWriter) Path() string {
	return t.path
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if _, exists := t.tables[tableName]; exists {
		return
	}

	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")

	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	t.tableNames = append(t.tableNames, tableName)
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("datarecording: table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("datarecording: table %s stores %s, got %T",
			tableName, table.structType, entry))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.Flush()
	}
}

func (t *sqliteWriter) ListTables() []string {
	return append([]string(nil), t.tableNames...)
}

func (t *sqliteWriter) Flush() {
	if t.entryCount == 0 || t.closed {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, tableName := range t.tableNames {
		table := t.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		t.insertAll(tableName, table)
		table.entries = nil
	}

	t.entryCount = 0
}

func (t *sqliteWriter) insertAll(tableName string, table *table) {
	stmt := t.prepareStatement(tableName, table.structType.NumField())
	defer stmt.Close()

	for _, entry := range table.entries {
		v := reflect.ValueOf(entry)
		args := make([]any, v.NumField())

		for i := range args {
			args[i] = v.Field(i).Interface()
		}

		_, err := stmt.Exec(args...)
		if err != nil {
			panic(err)
		}
	}
}

func (t *sqliteWriter) Close() error {
	if t.closed {
		return nil
	}

	t.Flush()
	t.closed = true

	return t.DB.Close()
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("datarecording: executing %q: %w", query, err))
	}

	return res
}

func (t *sqliteWriter) prepareStatement(tableName string, numFields int) *sql.Stmt {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", numFields), ", ")
	sqlStr := "INSERT INTO " + tableName + " VALUES (" + placeholders + ")"

	stmt, err := t.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
