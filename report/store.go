package report

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flanksource/commons/collections/set"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// The number of rows to sample to infer column types
const defaultSampleSize = 150

// The batch size for row inserts
const insertBatchSize = 100

// Section is one named table of the report artifact. Columns fixes the
// physical column order; Rows may be empty, in which case the table is
// still created.
type Section struct {
	Name    string
	Columns []string
	Rows    []map[string]any
}

// Store persists a full comparison run into a single SQLite artifact. One
// store owns one destination path; concurrent writers to the same path are
// not supported.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Write creates the artifact from scratch. A pre-existing artifact at the
// same path is truncated, never appended to. On failure the partial file is
// removed and a persistence error is returned.
func (s *Store) Write(ctx context.Context, sections []Section) error {
	ctx = ctx.WithName("report.store")
	oops := ctx.Oops().With("path", s.Path).Code(CodePersistence)

	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return oops.Wrapf(err, "cannot truncate existing artifact")
	}

	db, closeDB, err := s.open(ctx)
	if err != nil {
		return oops.Wrap(err)
	}

	writeAll := func() error {
		for _, section := range sections {
			if err := section.createTable(ctx, db); err != nil {
				return err
			}
			if err := section.insert(ctx, db); err != nil {
				return err
			}
			ctx.Logger.V(3).Infof("wrote section %s (%d rows)", section.Name, len(section.Rows))
		}
		return nil
	}

	if err := writeAll(); err != nil {
		_ = closeDB()
		s.discard(ctx)
		return oops.Wrap(err)
	}

	if err := closeDB(); err != nil {
		s.discard(ctx)
		return oops.Wrapf(err, "failed to close artifact")
	}

	return nil
}

// ReadSection loads one table back with its column order preserved.
func (s *Store) ReadSection(ctx context.Context, name string) (*Section, error) {
	ctx = ctx.WithName("report.store")
	oops := ctx.Oops().With("path", s.Path).With("section", name).Code(CodePersistence)

	db, closeDB, err := s.open(ctx)
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer closeDB()

	rows, err := db.Raw(fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(name))).Rows()
	if err != nil {
		return nil, oops.Wrap(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, oops.Wrap(err)
	}

	section := &Section{Name: name, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scans := make([]any, len(columns))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, oops.Wrap(err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		section.Rows = append(section.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Wrap(err)
	}

	return section, nil
}

func (s *Store) open(ctx context.Context) (*gorm.DB, func() error, error) {
	level := ctx.Properties().String("report.gorm.level", "error")
	db, err := gorm.Open(sqlite.Open(s.Path), &gorm.Config{Logger: NewGormLogger(level)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite database %s: %w", s.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return db, sqlDB.Close, nil
}

func (s *Store) discard(ctx context.Context) {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		ctx.Logger.Warnf("failed to remove partial artifact %s: %v", s.Path, err)
	}
}

func (section Section) createTable(ctx context.Context, db *gorm.DB) error {
	if len(section.Columns) == 0 {
		return fmt.Errorf("cannot create table %s without columns", section.Name)
	}

	columnTypes := inferColumnTypes(section.Rows)

	columnDefs := make([]string, 0, len(section.Columns))
	for _, columnName := range section.Columns {
		columnType, ok := columnTypes[columnName]
		if !ok {
			columnType = "TEXT"
		}
		columnDefs = append(columnDefs, fmt.Sprintf(`%s %s`, quoteIdent(columnName), columnType))
	}

	createTableSQL := fmt.Sprintf(`CREATE TABLE %s (%s)`,
		quoteIdent(section.Name),
		strings.Join(columnDefs, ", "))

	if err := db.WithContext(ctx).Exec(createTableSQL).Error; err != nil {
		return fmt.Errorf("failed to create table %s: %w", section.Name, err)
	}
	return nil
}

func (section Section) insert(ctx context.Context, db *gorm.DB) error {
	if len(section.Rows) == 0 {
		return nil
	}

	result := db.WithContext(ctx).Table(section.Name).CreateInBatches(section.Rows, insertBatchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to insert rows into table %s: %w", section.Name, result.Error)
	}
	return nil
}

// inferColumnTypes analyzes the first few rows to determine the most
// appropriate column type per column.
func inferColumnTypes(rows []map[string]any) map[string]string {
	columnTypeSets := make(map[string]set.Set[string])
	for i, row := range rows {
		if i >= defaultSampleSize {
			break
		}

		for col, val := range row {
			if columnTypeSets[col] == nil {
				columnTypeSets[col] = set.New[string]()
			}
			if val != nil {
				columnTypeSets[col].Add(goTypeToSQLiteType(val))
			}
		}
	}

	columnTypes := make(map[string]string)
	for col, typeSet := range columnTypeSets {
		columnTypes[col] = bestColumnType(typeSet)
	}
	return columnTypes
}

func bestColumnType(typeSet set.Set[string]) string {
	if len(typeSet) == 0 {
		return "TEXT"
	}
	if typeSet.Contains("TEXT") {
		return "TEXT"
	}
	if typeSet.Contains("REAL") {
		return "REAL"
	}
	return "INTEGER"
}

func goTypeToSQLiteType(value any) string {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case bool:
		return "INTEGER" // SQLite stores booleans as integers
	case time.Time:
		return "TEXT" // stored as ISO string
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// asFloat coerces a scanned sqlite value.
func asFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int64:
		f := float64(x)
		return &f
	case sql.NullFloat64:
		if x.Valid {
			return &x.Float64
		}
	}
	return nil
}

func asInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
