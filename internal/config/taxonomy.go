package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

var arxivCategoryRe = regexp.MustCompile(`^[a-z\-]+(\.[A-Za-z\-]+)?$`)

type taxonomyFile struct {
	Fields []mainFieldFile `mapstructure:"fields" validate:"required,min=1,unique=Name,dive"`
}

type mainFieldFile struct {
	Name      string         `mapstructure:"name" validate:"required"`
	SubFields []subFieldFile `mapstructure:"sub_fields" validate:"required,min=1,unique=Name,dive"`
}

type subFieldFile struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Category string   `mapstructure:"category" validate:"required,arxivcat"`
	Keywords []string `mapstructure:"keywords" validate:"dive,required"`
}

// Taxonomy maps main field -> sub field -> {category, keywords}. It is built
// once by LoadTaxonomy and never mutated; accessors hand out copies.
type Taxonomy struct {
	fields []MainField
}

type MainField struct {
	Name      string
	SubFields []SubField
}

type SubField struct {
	Name     string
	Category string
	Keywords []string
}

// LoadTaxonomy reads the taxonomy from path, or from the embedded default when
// path is empty, and validates it.
func LoadTaxonomy(path string) (Taxonomy, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path == "" {
		if err := v.ReadConfig(bytes.NewReader(defaultTaxonomy)); err != nil {
			return Taxonomy{}, fmt.Errorf("read embedded taxonomy: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Taxonomy{}, fmt.Errorf("read taxonomy %s: %w", path, err)
		}
	}
	var raw taxonomyFile
	if err := v.Unmarshal(&raw); err != nil {
		return Taxonomy{}, fmt.Errorf("decode taxonomy: %w", err)
	}
	return newTaxonomy(raw)
}

// NewTaxonomy validates fields with the same rules as LoadTaxonomy.
func NewTaxonomy(fields []MainField) (Taxonomy, error) {
	raw := taxonomyFile{Fields: make([]mainFieldFile, 0, len(fields))}
	for _, mf := range fields {
		main := mainFieldFile{Name: mf.Name}
		for _, sf := range mf.SubFields {
			main.SubFields = append(main.SubFields, subFieldFile{Name: sf.Name, Category: sf.Category, Keywords: sf.Keywords})
		}
		raw.Fields = append(raw.Fields, main)
	}
	return newTaxonomy(raw)
}

func newTaxonomy(raw taxonomyFile) (Taxonomy, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("arxivcat", func(fl validator.FieldLevel) bool {
		return arxivCategoryRe.MatchString(fl.Field().String())
	}); err != nil {
		return Taxonomy{}, fmt.Errorf("register taxonomy validation: %w", err)
	}
	if err := validate.Struct(raw); err != nil {
		return Taxonomy{}, fmt.Errorf("invalid taxonomy: %w", err)
	}

	t := Taxonomy{fields: make([]MainField, 0, len(raw.Fields))}
	for _, mf := range raw.Fields {
		main := MainField{Name: mf.Name, SubFields: make([]SubField, 0, len(mf.SubFields))}
		for _, sf := range mf.SubFields {
			main.SubFields = append(main.SubFields, SubField{
				Name:     sf.Name,
				Category: sf.Category,
				Keywords: append([]string(nil), sf.Keywords...),
			})
		}
		t.fields = append(t.fields, main)
	}
	return t, nil
}

// Fields returns the main fields in configured order.
func (t Taxonomy) Fields() []MainField {
	out := make([]MainField, 0, len(t.fields))
	for _, mf := range t.fields {
		out = append(out, mf.clone())
	}
	return out
}

func (t Taxonomy) Len() int {
	return len(t.fields)
}

// Categories returns the distinct category codes of the main field, in first
// occurrence order.
func (m MainField) Categories() []string {
	seen := make(map[string]struct{}, len(m.SubFields))
	out := make([]string, 0, len(m.SubFields))
	for _, sf := range m.SubFields {
		if _, ok := seen[sf.Category]; ok {
			continue
		}
		seen[sf.Category] = struct{}{}
		out = append(out, sf.Category)
	}
	return out
}

func (m MainField) clone() MainField {
	subs := make([]SubField, 0, len(m.SubFields))
	for _, sf := range m.SubFields {
		sf.Keywords = append([]string(nil), sf.Keywords...)
		subs = append(subs, sf)
	}
	return MainField{Name: m.Name, SubFields: subs}
}
