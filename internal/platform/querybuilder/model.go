package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
)

type modelField struct {
	column string
	cast   string
	value  any
}

// modelFields reads exported fields tagged `db:"name[,cast]"`, e.g. `db:"teams,jsonb"`.
func modelFields(model any) ([]modelField, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be struct")
	}

	typ := value.Type()
	out := make([]modelField, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		parts := strings.Split(strings.TrimSpace(field.Tag.Get("db")), ",")
		name := strings.TrimSpace(parts[0])
		if name == "" || name == "-" {
			continue
		}
		item := modelField{column: name, value: value.Field(i).Interface()}
		if len(parts) > 1 {
			item.cast = strings.TrimSpace(parts[1])
		}
		out = append(out, item)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("model has no db columns")
	}
	return out, nil
}

// ModelColumns lists the db column names of model in field order.
func ModelColumns(model any) ([]string, error) {
	fields, err := modelFields(model)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, field.column)
	}
	return out, nil
}

func InsertModel(table string, model any, suffix string) (string, []any, error) {
	fields, err := modelFields(model)
	if err != nil {
		return "", nil, err
	}
	builder := InsertInto(table).Suffix(suffix)
	for _, field := range fields {
		builder.CastColumn(field.column, field.cast).Values(field.value)
	}
	return builder.ToSQL()
}

// UpdateModel sets every model column except the skipped ones. Callers add the WHERE clause.
func UpdateModel(table string, model any, skip ...string) (*UpdateBuilder, error) {
	fields, err := modelFields(model)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, name := range skip {
		skipped[name] = struct{}{}
	}

	builder := Update(table)
	for _, field := range fields {
		if _, ok := skipped[field.column]; ok {
			continue
		}
		builder.SetCast(field.column, field.value, field.cast)
	}
	return builder, nil
}
