package report

import (
	"fmt"
	"strings"
)

// Locale selects the column headers and label translations used in a report.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleRussian Locale = "ru"
)

type localeTable struct {
	imageHeader string
	classHeader string
	labels      map[string]string
}

var locales = map[Locale]localeTable{
	LocaleEnglish: {
		imageHeader: "Image",
		classHeader: "Class",
	},
	LocaleRussian: {
		imageHeader: "Изображение",
		classHeader: "Класс",
		labels: map[string]string{
			"deer":     "Олень",
			"roedeer":  "Косуля",
			"muskdeer": "Кабарга",
		},
	},
}

// ParseLocale validates a locale name. The empty string means English.
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if l == "" {
		return LocaleEnglish, nil
	}
	if _, ok := locales[l]; !ok {
		return "", fmt.Errorf("unsupported report locale %q (want en or ru)", s)
	}
	return l, nil
}

// Headers returns the column titles for l.
func (l Locale) Headers() []string {
	t := l.table()
	return []string{t.imageHeader, t.classHeader}
}

// Translate returns the display name of label. Labels without a
// translation are returned unchanged.
func (l Locale) Translate(label string) string {
	if name, ok := l.table().labels[label]; ok {
		return name
	}
	return label
}

func (l Locale) table() localeTable {
	if t, ok := locales[l]; ok {
		return t
	}
	return locales[LocaleEnglish]
}
