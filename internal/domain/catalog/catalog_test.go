package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultCatalog(t *testing.T) {
	Convey("Given the embedded catalog", t, func() {
		c, err := catalog.Load("")

		Convey("Then it loads without error", func() {
			So(err, ShouldBeNil)
			So(c.Actions(), ShouldEqual, 15)
		})

		Convey("Then categories keep their declared order", func() {
			cats := c.Categories()
			So(len(cats), ShouldEqual, 5)
			So(cats[0].Key, ShouldEqual, model.CategoryBetrayal)
			So(cats[2].Key, ShouldEqual, model.CategoryContract)
			So(cats[4].Key, ShouldEqual, model.CategoryPassion)
			So(c.CategoryName(model.CategoryAlliance), ShouldEqual, "Союз")
		})

		Convey("Then actions are looked up case-insensitively", func() {
			a, ok := c.Action("ПОМОЩЬ")
			So(ok, ShouldBeTrue)
			So(a.Category, ShouldEqual, model.CategoryAlliance)
			So(a.Base, ShouldEqual, 10)
			So(a.Variable, ShouldBeFalse)

			_, ok = c.Action("танец")
			So(ok, ShouldBeFalse)
		})

		Convey("Then variable actions carry keyword rules", func() {
			a, ok := c.Action("долг")
			So(ok, ShouldBeTrue)
			So(a.Variable, ShouldBeTrue)

			r, ok := c.Rule("Долг")
			So(ok, ShouldBeTrue)
			So(r.Keywords, ShouldResemble, []string{"жизнь", "спасение", "риск"})
			So(r.High, ShouldEqual, 10)
			So(r.Low, ShouldEqual, 5)
		})

		Convey("Then modifiers resolve to multipliers", func() {
			m, ok := c.Modifier("Наедине")
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, 1.5)
		})

		Convey("Then Default returns the same table", func() {
			So(catalog.Default().Actions(), ShouldEqual, 15)
		})
	})
}

func TestLoadErrors(t *testing.T) {
	Convey("Given catalog sources that cannot be used", t, func() {
		Convey("When the file does not exist", func() {
			_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			Convey("Then the configuration is missing", func() {
				So(errors.Is(err, catalog.ErrConfigurationMissing), ShouldBeTrue)
			})
		})

		Convey("When the file is empty", func() {
			path := filepath.Join(t.TempDir(), "empty.yaml")
			So(os.WriteFile(path, nil, 0o600), ShouldBeNil)
			_, err := catalog.Load(path)

			Convey("Then the configuration is missing", func() {
				So(errors.Is(err, catalog.ErrConfigurationMissing), ShouldBeTrue)
			})
		})

		Convey("When an inline document is empty", func() {
			_, err := catalog.Parse(nil)

			Convey("Then the configuration is missing", func() {
				So(errors.Is(err, catalog.ErrConfigurationMissing), ShouldBeTrue)
			})
		})

		Convey("When the document has no actions", func() {
			_, err := catalog.Parse([]byte("categories:\n  - key: alliance\n    name: Союз\n"))

			Convey("Then the configuration is missing", func() {
				So(errors.Is(err, catalog.ErrConfigurationMissing), ShouldBeTrue)
			})
		})
	})
}

func TestValidation(t *testing.T) {
	base := `
categories:
  - key: alliance
    name: Союз
`
	Convey("Given inconsistent catalogs", t, func() {
		cases := []struct {
			name string
			doc  string
		}{
			{"unknown category", base + "actions:\n  помощь:\n    category: trade\n    base_effect: 10\n"},
			{"bad base effect", base + "actions:\n  помощь:\n    category: alliance\n    base_effect: lots\n"},
			{"fractional base effect", base + "actions:\n  помощь:\n    category: alliance\n    base_effect: 2.5\n"},
			{"missing base effect", base + "actions:\n  помощь:\n    category: alliance\n"},
			{"non-positive multiplier", base + "actions:\n  помощь:\n    category: alliance\n    base_effect: 10\nmodifiers:\n  тихо: 0\n"},
			{"rule for fixed action", base + "actions:\n  помощь:\n    category: alliance\n    base_effect: 10\nvariable_rules:\n  помощь:\n    keywords: [x]\n    high: 10\n    low: 5\n"},
			{"actions colliding after folding", base + "actions:\n  Помощь:\n    category: alliance\n    base_effect: 10\n  помощь:\n    category: alliance\n    base_effect: 5\n"},
		}

		for _, tc := range cases {
			Convey("Then "+tc.name+" is rejected", func() {
				_, err := catalog.Parse([]byte(tc.doc))
				So(errors.Is(err, catalog.ErrInvalidCatalog), ShouldBeTrue)
			})
		}
	})

	Convey("Given a custom catalog file", t, func() {
		doc := base + `
actions:
  Объятие:
    category: Alliance
    base_effect: "5"
  клятва:
    category: alliance
    base_effect: VARIABLE
modifiers:
  крепко: 3
`
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		So(os.WriteFile(path, []byte(doc), 0o600), ShouldBeNil)

		c, err := catalog.Load(path)

		Convey("Then keys are folded and loosely typed values accepted", func() {
			So(err, ShouldBeNil)
			a, ok := c.Action("объятие")
			So(ok, ShouldBeTrue)
			So(a.Base, ShouldEqual, 5)
			So(a.Category, ShouldEqual, model.CategoryAlliance)

			v, ok := c.Action("КЛЯТВА")
			So(ok, ShouldBeTrue)
			So(v.Variable, ShouldBeTrue)

			_, hasRule := c.Rule("клятва")
			So(hasRule, ShouldBeFalse)

			m, _ := c.Modifier("крепко")
			So(m, ShouldEqual, 3.0)
		})
	})
}
