// Package schema проверяет присланные клиентом записи по JSON Schema
// соответствующего типа данных до того, как их увидит обработчик.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"

	"healthsync/internal/domain/record"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const baseURL = "https://healthsync.local/schemas/"

//go:embed schemas/*.json
var files embed.FS

// Validator набор скомпилированных схем, по одной на тип данных
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New компилирует все встроенные схемы
func New() (*Validator, error) {
	entries, err := files.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		raw, err := files.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(baseURL+e.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		sch, err := c.Compile(baseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[strings.TrimSuffix(name, ".json")] = sch
	}

	return v, nil
}

// MustNew как New, но паникует при ошибке. Схемы встроены в бинарник,
// поэтому ошибка здесь означает поломку сборки.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Has сообщает, есть ли схема для типа данных
func (v *Validator) Has(dataType string) bool {
	_, ok := v.schemas[dataType]
	return ok
}

// Validate проверяет запись. Типы без схемы пропускаются.
func (v *Validator) Validate(dataType string, payload []byte) error {
	sch, ok := v.schemas[dataType]
	if !ok {
		return nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}

	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}

	return nil
}
