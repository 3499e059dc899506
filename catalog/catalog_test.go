package catalog

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/merchant-survey/model"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{"categories.json", "categories.yaml"} {
		t.Run(name, func(t *testing.T) {
			c, err := Load(filepath.Join("testdata", name))
			require.NoError(t, err)

			assert.Equal(t, []string{"Retail", "مطاعم"}, c.Names())

			retail, ok := c.Category("Retail")
			require.True(t, ok)
			require.Len(t, retail.Questions, 2)
			assert.Equal(t, model.Question{
				Text:    "Do you accept cards?",
				Options: []string{"Yes", "No"},
			}, retail.Questions[0])
			assert.Equal(t, []string{"1-5", "6-20", "More than 20"}, retail.Questions[1].Options)

			food, ok := c.Category("مطاعم")
			require.True(t, ok)
			assert.Equal(t, []string{"نعم", "لا"}, food.Questions[0].Options)

			_, ok = c.Category("Unknown")
			assert.False(t, ok)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid.json"))
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 5)
	assert.Contains(t, err.Error(), `category "Cafes", question #2: duplicate text "Q"`)
}

func TestNew_DuplicateQuestionText(t *testing.T) {
	_, err := New([]model.Category{{
		Name: "Retail",
		Questions: []model.Question{
			{Text: "Q", Options: []string{"Yes", "No"}},
			{Text: "Q", Options: []string{"A", "B"}},
		},
	}})
	assert.Error(t, err)

	_, err = New([]model.Category{
		{Name: "Retail", Questions: []model.Question{{Text: "Q", Options: []string{"Yes"}}}},
		{Name: "Cafes", Questions: []model.Question{{Text: "Q", Options: []string{"Yes"}}}},
	})
	assert.NoError(t, err, "the same text may appear in different categories")
}

func TestNew_NormalizesCategoryNames(t *testing.T) {
	raw := []model.Category{{
		Name:      "  Cafe\u0301 ",
		Questions: []model.Question{{Text: "Seating?", Options: []string{"Indoor"}}},
	}}

	c, err := New(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Caf\u00e9"}, c.Names())

	cat, ok := c.Category("Caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, "Caf\u00e9", cat.Name)

	_, ok = c.Category("Cafe\u0301")
	assert.True(t, ok, "lookups are normalised too")
	assert.Equal(t, "  Cafe\u0301 ", raw[0].Name, "input is not modified")

	_, err = New([]model.Category{
		{Name: "Caf\u00e9", Questions: raw[0].Questions},
		{Name: "Cafe\u0301", Questions: raw[0].Questions},
	})
	assert.Error(t, err, "names equal after normalisation are duplicates")
}

func TestLoad_Corrupt(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "corrupt.json"))
	assert.Error(t, err)
}

func TestLoader_MissingFileYieldsEmptyCatalog(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

	c, err := l.Load()
	assert.Error(t, err)
	require.NotNil(t, c)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Names())

	again, err2 := l.Load()
	assert.Same(t, c, again)
	assert.Equal(t, err, err2)
}

func TestLoader_Caches(t *testing.T) {
	l := NewLoader(filepath.Join("testdata", "categories.json"))

	first, err := l.Load()
	require.NoError(t, err)
	second, err := l.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
