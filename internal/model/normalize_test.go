package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plus seven formatted", "+7 (495) 123-45-67", "74951234567"},
		{"leading eight folds to seven", "8 (495) 123-45-67", "74951234567"},
		{"bare digits unchanged", "74951234567", "74951234567"},
		{"short number keeps eight", "84951234", "84951234"},
		{"mobile with dashes", "8-912-345-67-89", "79123456789"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizePhoneDedupEquivalence(t *testing.T) {
	// The two common spellings of the same Moscow number must collide.
	assert.Equal(t, NormalizePhone("8 495 123-45-67"), NormalizePhone("+7 (495) 123 45 67"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "info@example.ru", NormalizeEmail("  Info@Example.RU "))
}

func TestNormalizeFullName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"cyrillic case and spacing", "  Иванов   Иван ", "иванов иван"},
		{"latin", "John  Smith", "john smith"},
		{"tabs and newlines", "Петров\tПётр\n", "петров пётр"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFullName(tt.input))
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "ooo-romashka", Slugify("OOO Romashka"))
	assert.Equal(t, "ооо-ромашка", Slugify(`ООО "Ромашка"`))
	assert.Equal(t, "a-b-c", Slugify("a -- b__c!"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestValidINN(t *testing.T) {
	assert.True(t, ValidINN("7707083893"))
	assert.True(t, ValidINN("500100732259"))
	assert.False(t, ValidINN("12345"))
	assert.False(t, ValidINN("77070838931"))
	assert.False(t, ValidINN("77070838ab"))
	assert.False(t, ValidINN(""))
}
