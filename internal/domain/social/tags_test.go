package social_test

import (
	"strings"
	"testing"

	"github.com/okian/whisper/internal/domain/catalog"
	"github.com/okian/whisper/internal/domain/model"
	"github.com/okian/whisper/internal/domain/social"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTagParser_Extract(t *testing.T) {
	Convey("Given a parser over the default catalog", t, func() {
		parser := social.NewTagParser(catalog.Default())

		Convey("When a post carries a single tag", func() {
			tags := parser.Extract("Помог Нигану починить генератор. #Negan_помощь_наедине")

			Convey("Then the target keeps its case and segments are folded", func() {
				So(tags, ShouldResemble, []model.InteractionTag{
					{TargetName: "Negan", Action: "помощь", Modifiers: []string{"наедине"}},
				})
			})
		})

		Convey("When segments are upper-case, repeated or unknown", func() {
			tags := parser.Extract("#Рик_ПОМОЩЬ_Наедине_наедине_громко_публично")

			Convey("Then unknown and repeated modifiers are dropped one by one", func() {
				So(len(tags), ShouldEqual, 1)
				So(tags[0].Action, ShouldEqual, "помощь")
				So(tags[0].Modifiers, ShouldResemble, []string{"наедине", "публично"})
			})
		})

		Convey("When tags are invalid", func() {
			tags := parser.Extract("#Rick_танец #Rick #_помощь # просто #hashtag")

			Convey("Then they are skipped silently", func() {
				So(tags, ShouldBeEmpty)
			})
		})

		Convey("When a post has several tags", func() {
			tags := parser.Extract("#Negan_угроза\nи потом #Carol_флирт_нежно, #Daryl_долг")

			Convey("Then they come back in order", func() {
				So(len(tags), ShouldEqual, 3)
				So(tags[0].TargetName, ShouldEqual, "Negan")
				So(tags[1].TargetName, ShouldEqual, "Carol")
				So(tags[1].Modifiers, ShouldResemble, []string{"нежно"})
				So(tags[2].Action, ShouldEqual, "долг")
				So(tags[2].Modifiers, ShouldBeEmpty)
			})
		})

		Convey("When the text is in decomposed form", func() {
			decomposed := "#Negan_поцелуи\u0306"
			tags := parser.Extract(decomposed)

			Convey("Then it is normalized before matching", func() {
				So(len(tags), ShouldEqual, 1)
				So(tags[0].Action, ShouldEqual, "поцелуй")
			})
		})

		Convey("When the text is empty", func() {
			So(parser.Extract(""), ShouldBeEmpty)
		})
	})
}

func TestDescribe(t *testing.T) {
	Convey("Given post content", t, func() {
		Convey("When some of the first lines are tags", func() {
			got := social.Describe("  Первая строка \n#Negan_помощь\nТретья\nЧетвёртая", 200)

			Convey("Then only untagged lines among the first three are kept", func() {
				So(got, ShouldEqual, "Первая строка Третья")
			})
		})

		Convey("When the content is long", func() {
			got := social.Describe(strings.Repeat("ж", 500), 200)

			Convey("Then it is cut to the limit in runes", func() {
				So([]rune(got), ShouldHaveLength, 200)
			})
		})
	})
}
