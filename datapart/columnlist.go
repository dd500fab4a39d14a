package datapart

import (
	"bufio"
	"os"
	"strings"

	"github.com/NebulousLabs/errors"
	"gitlab.com/columnstore/columnstore/persist"
)

// NameAndType pairs a column's name with its on-disk type, as persisted
// in columns.txt.
type NameAndType struct {
	Name string
	Type ColumnType
}

// ReadColumnsFile reads the columns.txt file at path into an ordered list
// of (name, type) pairs, requiring the file to be fully consumed.
func ReadColumnsFile(path string) ([]NameAndType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Extend(err, errors.New("could not open columns.txt"))
	}
	defer f.Close()

	var columns []NameAndType
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, errors.New("malformed columns.txt line: " + line)
		}
		typ, err := ParseColumnType(parts[1])
		if err != nil {
			return nil, errors.Extend(err, errors.New("could not parse type for column "+parts[0]))
		}
		columns = append(columns, NameAndType{Name: parts[0], Type: typ})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Extend(err, errors.New("could not read columns.txt"))
	}
	return columns, nil
}

// WriteColumnsFile writes columns to the columns.txt file at path in the
// name\ttype\n format ReadColumnsFile expects. The write goes through
// persist.SaveFileSync so a crash mid-write never leaves a truncated
// columns.txt in place of the previous, still-valid one.
func WriteColumnsFile(columns []NameAndType, path string) error {
	var b strings.Builder
	for _, c := range columns {
		b.WriteString(c.Name)
		b.WriteByte('\t')
		b.WriteString(c.Type.String())
		b.WriteByte('\n')
	}
	if err := persist.SaveFileSync([]byte(b.String()), path); err != nil {
		return errors.Extend(err, errors.New("could not write columns.txt"))
	}
	return nil
}

// ParseColumnType parses a type's String() form back into a ColumnType,
// the inverse of each concrete type's String method. It supports the
// small set of column kinds this module instantiates: UInt64, String,
// Nullable(...), Array(...) and LowCardinality(...).
func ParseColumnType(s string) (ColumnType, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "UInt64":
		return UInt64Type{}, nil
	case s == "String":
		return StringType{}, nil
	case strings.HasPrefix(s, "Nullable(") && strings.HasSuffix(s, ")"):
		inner, err := ParseColumnType(s[len("Nullable(") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return NullableType{Inner: inner}, nil
	case strings.HasPrefix(s, "Array(") && strings.HasSuffix(s, ")"):
		inner, err := ParseColumnType(s[len("Array(") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return ArrayType{Inner: inner}, nil
	case strings.HasPrefix(s, "LowCardinality(") && strings.HasSuffix(s, ")"):
		inner, err := ParseColumnType(s[len("LowCardinality(") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return LowCardinalityType{Inner: inner}, nil
	default:
		return nil, errors.New("unknown column type: " + s)
	}
}
