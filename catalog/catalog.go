// Package catalog loads the static category → question → options document.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mbolis/merchant-survey/model"
)

type document struct {
	Categories []model.Category `json:"business_categories" yaml:"business_categories"`
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	categories []model.Category
	byName     map[string]int
}

// Empty is the catalog substituted when the document cannot be loaded.
var Empty = &Catalog{byName: map[string]int{}}

// New validates categories and builds a catalog from them. Category names
// are normalised with model.NormalizeText, so that they compare equal to
// normalised user input.
func New(categories []model.Category) (*Catalog, error) {
	normalized := make([]model.Category, len(categories))
	for i, cat := range categories {
		cat.Name = model.NormalizeText(cat.Name)
		normalized[i] = cat
	}
	if err := validate(normalized); err != nil {
		return nil, err
	}
	c := &Catalog{
		categories: normalized,
		byName:     make(map[string]int, len(normalized)),
	}
	for i, cat := range normalized {
		c.byName[cat.Name] = i
	}
	return c, nil
}

// Load reads the catalog document at path. Files ending in .yaml or .yml
// are decoded as YAML, anything else as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "catalog.read")
	}

	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "catalog.parse %s", filepath.Base(path))
	}

	c, err := New(doc.Categories)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog.validate %s", filepath.Base(path))
	}
	return c, nil
}

func validate(categories []model.Category) error {
	var result *multierror.Error
	seen := map[string]bool{}
	for i, cat := range categories {
		if cat.Name == "" {
			result = multierror.Append(result, fmt.Errorf("category #%d: missing name", i+1))
			continue
		}
		if seen[cat.Name] {
			result = multierror.Append(result, fmt.Errorf("category %q: duplicate name", cat.Name))
		}
		seen[cat.Name] = true

		questions := map[string]bool{}
		for j, q := range cat.Questions {
			if strings.TrimSpace(q.Text) == "" {
				result = multierror.Append(result, fmt.Errorf("category %q, question #%d: missing text", cat.Name, j+1))
			} else if questions[q.Text] {
				result = multierror.Append(result, fmt.Errorf("category %q, question #%d: duplicate text %q", cat.Name, j+1, q.Text))
			}
			questions[q.Text] = true
			if len(q.Options) == 0 {
				result = multierror.Append(result, fmt.Errorf("category %q, question #%d: no options", cat.Name, j+1))
			}
		}
	}
	return result.ErrorOrNil()
}

func (c *Catalog) Categories() []model.Category {
	return c.categories
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

func (c *Catalog) Category(name string) (model.Category, bool) {
	i, ok := c.byName[model.NormalizeText(name)]
	if !ok {
		return model.Category{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) Len() int {
	return len(c.categories)
}

// Loader loads a catalog once and serves the cached result for the
// lifetime of the process.
type Loader struct {
	path string

	once    sync.Once
	catalog *Catalog
	err     error
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load returns the cached catalog. If the document could not be loaded it
// returns the Empty catalog together with the load error, every time.
func (l *Loader) Load() (*Catalog, error) {
	l.once.Do(func() {
		l.catalog, l.err = Load(l.path)
		if l.err != nil {
			l.catalog = Empty
		}
	})
	return l.catalog, l.err
}
